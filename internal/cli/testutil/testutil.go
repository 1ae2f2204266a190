// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/dbdeck/internal/cli/output"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// FixtureSchema seeds the database written by SetupTestProject.
const FixtureSchema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	age INTEGER
);
CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	user_id INTEGER REFERENCES users(id),
	total REAL
);
INSERT INTO users (id, name, age) VALUES (1, 'alice', 30), (2, 'bob', 41), (3, 'carol', 30);
INSERT INTO orders (id, user_id, total) VALUES (10, 1, 9.5), (11, 3, 20);
`

// SetupTestDatabase writes a seeded sqlite database into dir and returns its path.
func SetupTestDatabase(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "app.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(context.Background(), FixtureSchema); err != nil {
		t.Fatalf("failed to seed %s: %v", path, err)
	}
	return path
}

// SetupTestProject creates a temporary project holding a seeded sqlite
// database and a dbdeck.yaml with a single "local" connection to it.
// It returns the config file path.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	SetupTestDatabase(t, tmpDir)

	cfgPath := filepath.Join(tmpDir, "dbdeck.yaml")
	cfg := "connections:\n  local:\n    type: sqlite\n    path: app.db\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to create dbdeck.yaml: %v", err)
	}
	return cfgPath
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// Reset clears both output buffers.
func (tr *TestRenderer) Reset() {
	tr.Out.Reset()
	tr.ErrOut.Reset()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
