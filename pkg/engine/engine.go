// Package engine provides the uniform contract every dbdeck backend implements.
//
// This package contains the Engine interface, a shared database/sql
// implementation (BaseSQLEngine), the engine registry and connection factory,
// the batch commit protocol, and the tunneled engine proxy. Concrete engines
// live in pkg/engines/ subdirectories and register themselves from init().
//
// Read operations (IsOkay, GetTables, GetColumns, GetTotalRows, GetRows) never
// return errors: failures are logged and degrade to an empty result so callers
// always have something renderable. Write operations (CommitChange, RawQuery)
// return errors, and mutation errors carry the backend text unmodified.
package engine

import (
	"context"
	"errors"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// ErrNotConnected is returned by write paths on an engine with no open handle.
var ErrNotConnected = errors.New("database connection not established")

// Tx is a transaction obtained from Engine.Begin.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Engine defines the interface that all database engines must implement.
// Calls against one Engine must not overlap with effects on server-side
// cursors; the engine does not serialize callers.
type Engine interface {
	// Type returns the registry name of the engine ("postgres", "mongodb", ...).
	Type() string

	// Connect opens the underlying handle. Failures are logged and reported as false.
	Connect(ctx context.Context) bool

	// IsOkay probes liveness. An engine with no handle reports false.
	IsOkay(ctx context.Context) bool

	// GetTables returns user tables sorted by name.
	GetTables(ctx context.Context) []string

	// GetColumns returns column metadata for a table, in table order.
	GetColumns(ctx context.Context, table string) []core.Column

	// GetTotalRows counts rows matching the filter.
	GetTotalRows(ctx context.Context, table string, columns []core.Column, filter map[string]any) int

	// GetRows returns one window of rows matching the filter, or nil on failure.
	GetRows(ctx context.Context, table string, columns []core.Column, limit, offset int, filter map[string]any) *core.QueryResponse

	// GetTableCreationSQL returns a DDL-like description of the table, or "".
	GetTableCreationSQL(ctx context.Context, table string) string

	// Begin starts the transaction CommitChange runs in.
	Begin(ctx context.Context) (Tx, error)

	// CommitChange applies one mutation inside tx.
	CommitChange(ctx context.Context, m core.Mutation, tx Tx) error

	// GetVersion returns the server version, or "" when unknown.
	GetVersion(ctx context.Context) string

	// RawQuery executes trusted input verbatim. It bypasses filter building
	// and parameterization entirely.
	RawQuery(ctx context.Context, code string) (any, error)

	// Disconnect releases the handle. Calling it again is a no-op.
	Disconnect(ctx context.Context) error
}
