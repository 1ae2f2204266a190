package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

type fakeTx struct {
	mu         sync.Mutex
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolledBack = true
	return nil
}

// fakeEngine records what it is asked to do. Mutations against failTable fail.
type fakeEngine struct {
	name      string
	port      int
	tables    []string
	failTable string
	beginErr  error
	connectOK bool

	mu           sync.Mutex
	tx           *fakeTx
	applied      []core.Mutation
	disconnected int
}

func newFakeEngine(tables ...string) *fakeEngine {
	return &fakeEngine{name: "fake", tables: tables, connectOK: true}
}

func (f *fakeEngine) Type() string { return f.name }
func (f *fakeEngine) Connect(context.Context) bool { return f.connectOK }
func (f *fakeEngine) IsOkay(context.Context) bool { return f.connectOK }
func (f *fakeEngine) GetTables(context.Context) []string { return f.tables }

func (f *fakeEngine) GetColumns(context.Context, string) []core.Column {
	return []core.Column{{Name: "id", Type: "integer", IsPrimaryKey: true}}
}

func (f *fakeEngine) GetTotalRows(context.Context, string, []core.Column, map[string]any) int {
	return len(f.tables)
}

func (f *fakeEngine) GetRows(_ context.Context, table string, _ []core.Column, _, _ int, _ map[string]any) *core.QueryResponse {
	return &core.QueryResponse{Rows: []core.Row{{"id": 1}}, SQL: "fake rows from " + table}
}

func (f *fakeEngine) GetTableCreationSQL(_ context.Context, table string) string {
	return "CREATE TABLE " + table
}

func (f *fakeEngine) GetVersion(context.Context) string { return "fake 1.0" }

func (f *fakeEngine) Begin(context.Context) (Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tx = &fakeTx{}
	return f.tx, nil
}

func (f *fakeEngine) CommitChange(_ context.Context, m core.Mutation, _ Tx) error {
	if m.TargetTable() == f.failTable {
		return &core.QueryError{Query: "fake", Err: errors.New("constraint violated on " + f.failTable)}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, m)
	return nil
}

func (f *fakeEngine) RawQuery(_ context.Context, code string) (any, error) {
	return code, nil
}

func (f *fakeEngine) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected++
	return nil
}

var _ Engine = (*fakeEngine)(nil)
