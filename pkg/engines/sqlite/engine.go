// Package sqlite provides the embedded SQLite engine for dbdeck.
package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const (
	tablesQuery = `SELECT name FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY name`

	columnsQuery = `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`

	foreignKeyQuery = `SELECT "table", COALESCE("to", '') FROM pragma_foreign_key_list(?)
WHERE "from" = ? LIMIT 1`

	creationQuery = `SELECT sql FROM sqlite_master WHERE name = ?`
)

// integrityCheckLimit is the largest file PRAGMA integrity_check is run on.
const integrityCheckLimit = 5 << 30

// Engine implements engine.Engine for SQLite files and in-memory databases.
type Engine struct {
	engine.BaseSQLEngine
}

// New creates a new SQLite engine instance.
// If logger is nil, a discard logger is used.
func New(cfg core.ConnectionConfig, logger *slog.Logger) *Engine {
	if cfg.Path == "" {
		cfg.Path = core.MemoryPath
	}
	return &Engine{BaseSQLEngine: engine.NewBaseSQLEngine(cfg, dialect.SQLite, logger)}
}

// Connect opens the database file. The pool is limited to one connection
// so an in-memory database is shared by every call.
func (e *Engine) Connect(ctx context.Context) bool {
	if !e.ConnectWith(ctx, "sqlite", e.Cfg.Path) {
		return false
	}
	e.DB.SetMaxOpenConns(1)
	return true
}

func (e *Engine) inMemory() bool {
	return e.Cfg.Path == core.MemoryPath
}

// IsOkay runs PRAGMA integrity_check. In-memory databases are always okay,
// and files too large to check in reasonable time are reported okay with a warning.
func (e *Engine) IsOkay(ctx context.Context) bool {
	if e.DB == nil {
		return false
	}
	if e.inMemory() {
		return true
	}

	if info, err := os.Stat(e.Cfg.Path); err == nil && info.Size() > integrityCheckLimit {
		e.Logger.Warn("database file too big for integrity check, skipping",
			slog.String("path", e.Cfg.Path),
			slog.Int64("size", info.Size()))
		return true
	}

	result := e.QueryScalar(ctx, "PRAGMA integrity_check")
	if result != "ok" {
		e.Logger.Warn("integrity check failed", slog.String("path", e.Cfg.Path), slog.String("result", result))
		return false
	}
	return true
}

// GetTables lists user tables from sqlite_master.
func (e *Engine) GetTables(ctx context.Context) []string {
	return e.TableNames(ctx, tablesQuery)
}

// GetColumns introspects a table with pragma_table_info.
func (e *Engine) GetColumns(ctx context.Context, table string) []core.Column {
	return e.ScanColumns(ctx, table, scanColumn, func(ctx context.Context, column string) *core.ForeignKey {
		return e.ForeignKey(ctx, foreignKeyQuery, table, column)
	}, columnsQuery, table)
}

func scanColumn(rows *sql.Rows) (core.Column, error) {
	var col core.Column
	var notNull, pk int
	if err := rows.Scan(&col.Name, &col.Type, &notNull, &pk); err != nil {
		return core.Column{}, err
	}
	col.IsNullable = notNull == 0
	// pk is the 1-based position within the key, 0 for other columns.
	col.IsPrimaryKey = pk > 0
	return col, nil
}

// GetTableCreationSQL returns the statement stored in sqlite_master.
func (e *Engine) GetTableCreationSQL(ctx context.Context, table string) string {
	return e.QueryScalar(ctx, creationQuery, table)
}

// GetVersion returns the library version.
func (e *Engine) GetVersion(ctx context.Context) string {
	return e.QueryScalar(ctx, "SELECT sqlite_version()")
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
