// Package postgres provides the PostgreSQL engine for dbdeck.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

const (
	tablesQuery = `SELECT tablename FROM pg_catalog.pg_tables
WHERE schemaname NOT IN ('pg_catalog', 'information_schema')
  AND ($1 = '' OR schemaname = $1)
ORDER BY tablename`

	columnsQuery = `SELECT c.column_name, c.data_type, c.is_nullable,
  EXISTS (
    SELECT 1
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON tc.constraint_name = kcu.constraint_name
     AND tc.table_schema = kcu.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND kcu.table_schema = c.table_schema
      AND kcu.table_name = c.table_name
      AND kcu.column_name = c.column_name
  ) AS is_primary_key
FROM information_schema.columns c
WHERE LOWER(c.table_name) = LOWER($1)
  AND c.table_schema NOT IN ('pg_catalog', 'information_schema')
  AND ($2 = '' OR c.table_schema = $2)
ORDER BY c.ordinal_position`

	foreignKeyQuery = `SELECT ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND kcu.table_name = LOWER($1)
  AND kcu.column_name = LOWER($2)
LIMIT 1`

	creationQuery = `SELECT 'CREATE TABLE ' || quote_ident(table_name) || ' (' ||
  string_agg(quote_ident(column_name) || ' ' ||
    CASE
      WHEN data_type = 'character varying' AND character_maximum_length IS NOT NULL
        THEN 'character varying(' || character_maximum_length || ')'
      ELSE data_type
    END, ', ' ORDER BY ordinal_position) ||
  ');' AS create_sql
FROM information_schema.columns
WHERE table_name = $1
GROUP BY table_name`
)

// Driver names accepted by the "driver" option.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// Engine implements engine.Engine for PostgreSQL.
type Engine struct {
	engine.BaseSQLEngine
}

// New creates a new PostgreSQL engine instance.
// If logger is nil, a discard logger is used.
func New(cfg core.ConnectionConfig, logger *slog.Logger) *Engine {
	return &Engine{BaseSQLEngine: engine.NewBaseSQLEngine(cfg, dialect.Postgres, logger)}
}

// Connect opens the connection pool. The pgx driver is used unless the
// "driver" option selects lib/pq.
func (e *Engine) Connect(ctx context.Context) bool {
	return e.ConnectWith(ctx, driverName(e.Cfg), buildPostgresDSN(e.Cfg))
}

func driverName(cfg core.ConnectionConfig) string {
	switch strings.ToLower(cfg.Option("driver", DriverPgx)) {
	case "pq", DriverPq:
		return DriverPq
	default:
		return DriverPgx
	}
}

// buildPostgresDSN constructs a key=value connection string.
// A configured connection string wins.
func buildPostgresDSN(cfg core.ConnectionConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	sslmode := cfg.Option("sslmode", "disable")

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s",
		dsnValue(host), port, dsnValue(cfg.Database), dsnValue(sslmode))

	if cfg.Username != "" {
		dsn += " user=" + dsnValue(cfg.Username)
	}
	if cfg.Password != "" {
		dsn += " password=" + dsnValue(cfg.Password)
	}
	if v := cfg.Option("connect_timeout", ""); v != "" {
		dsn += " connect_timeout=" + dsnValue(v)
	}
	if cfg.Schema != "" {
		dsn += " search_path=" + dsnValue(cfg.Schema)
	}

	return dsn
}

// dsnValue quotes a key=value parameter when it is empty or contains
// spaces, quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// GetTables lists user tables outside the system schemas.
func (e *Engine) GetTables(ctx context.Context) []string {
	return e.TableNames(ctx, tablesQuery, e.Cfg.Schema)
}

// GetColumns introspects a table from information_schema.
func (e *Engine) GetColumns(ctx context.Context, table string) []core.Column {
	return e.ScanColumns(ctx, table, scanColumn, func(ctx context.Context, column string) *core.ForeignKey {
		return e.ForeignKey(ctx, foreignKeyQuery, table, column)
	}, columnsQuery, table, e.Cfg.Schema)
}

func scanColumn(rows *sql.Rows) (core.Column, error) {
	var col core.Column
	var nullable string
	if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.IsPrimaryKey); err != nil {
		return core.Column{}, err
	}
	col.IsNullable = nullable == "YES"
	return col, nil
}

// GetTableCreationSQL assembles a CREATE TABLE statement from the catalog.
func (e *Engine) GetTableCreationSQL(ctx context.Context, table string) string {
	return e.QueryScalar(ctx, creationQuery, table)
}

// GetVersion returns the server version string.
func (e *Engine) GetVersion(ctx context.Context) string {
	return e.QueryScalar(ctx, "SHOW server_version")
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
