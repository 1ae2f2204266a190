package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	"github.com/leapstack-labs/dbdeck/internal/cli/testutil"
	itestutil "github.com/leapstack-labs/dbdeck/internal/testutil"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engines/sqlite"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFixtureEngine(t *testing.T) *sqlite.Engine {
	t.Helper()
	path := testutil.SetupTestDatabase(t, t.TempDir())

	eng := sqlite.New(core.ConnectionConfig{Type: core.TypeSQLite, Path: path}, itestutil.NewTestLogger(t))
	require.True(t, eng.Connect(context.Background()))
	t.Cleanup(func() { _ = eng.Disconnect(context.Background()) })
	return eng
}

func TestHandleDotCommand(t *testing.T) {
	ctx := context.Background()
	eng := newFixtureEngine(t)
	r := testutil.NewTestRenderer(output.ModeCSV, false)

	cmd := &cobra.Command{}
	helpOut := &bytes.Buffer{}
	cmd.SetOut(helpOut)

	assert.False(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".tables"))
	assert.Equal(t, "table\norders\nusers\n", r.Output())

	r.Reset()
	assert.False(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".COLUMNS users"))
	assert.Contains(t, r.Output(), "name,type,pk,nullable\nid,INTEGER,yes,")

	r.Reset()
	assert.False(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".ddl users"))
	assert.Contains(t, r.Output(), "CREATE TABLE users")

	r.Reset()
	assert.False(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".columns"))
	assert.Contains(t, r.ErrorOutput(), "Usage: .columns <table>")

	r.Reset()
	assert.False(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".bogus"))
	assert.Contains(t, r.ErrorOutput(), "Unknown command: .bogus")

	assert.False(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".help"))
	assert.Contains(t, helpOut.String(), ".columns <table>")

	assert.True(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".quit"))
	assert.True(t, handleDotCommand(ctx, cmd, eng, r.Renderer, ".exit"))
	testutil.AssertNoANSI(t, r.Output()+r.ErrorOutput())
}

func TestExecuteAndRender(t *testing.T) {
	ctx := context.Background()
	eng := newFixtureEngine(t)
	r := testutil.NewTestRenderer(output.ModeCSV, false)

	require.NoError(t, executeAndRender(ctx, eng, r.Renderer, "  SELECT name FROM users WHERE age = 30 ORDER BY id  "))
	assert.Equal(t, "name\nalice\ncarol\n", r.Output())

	err := executeAndRender(ctx, eng, r.Renderer, "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query failed")
}

func TestNewTableCompleter(t *testing.T) {
	eng := newFixtureEngine(t)
	c := newTableCompleter(context.Background(), eng)

	names := make([]string, 0, len(c.GetChildren()))
	for _, child := range c.GetChildren() {
		names = append(names, string(child.GetName()))
	}
	assert.Contains(t, names, "users ")
	assert.Contains(t, names, ".columns ")
}
