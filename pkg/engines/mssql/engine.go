// Package mssql provides the Microsoft SQL Server engine for dbdeck.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
	mssql "github.com/microsoft/go-mssqldb"
)

const (
	tablesQuery = `SELECT TABLE_NAME
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_TYPE = 'BASE TABLE'
  AND TABLE_NAME NOT LIKE 'spt[_]%'
  AND TABLE_NAME <> 'MSreplication_options'
ORDER BY TABLE_NAME`

	columnsQuery = `SELECT c.COLUMN_NAME, c.DATA_TYPE, c.IS_NULLABLE,
  CASE WHEN EXISTS (
    SELECT 1
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
      ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
     AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
      AND kcu.TABLE_SCHEMA = c.TABLE_SCHEMA
      AND kcu.TABLE_NAME = c.TABLE_NAME
      AND kcu.COLUMN_NAME = c.COLUMN_NAME
  ) THEN 1 ELSE 0 END AS IS_PRIMARY_KEY
FROM INFORMATION_SCHEMA.COLUMNS c
WHERE c.TABLE_NAME = @p1
ORDER BY c.ORDINAL_POSITION`

	foreignKeyQuery = `SELECT TOP 1
  OBJECT_NAME(f.referenced_object_id),
  COL_NAME(fc.referenced_object_id, fc.referenced_column_id)
FROM sys.foreign_keys AS f
INNER JOIN sys.foreign_key_columns AS fc
  ON f.object_id = fc.constraint_object_id
WHERE f.parent_object_id = OBJECT_ID(@p1)
  AND COL_NAME(fc.parent_object_id, fc.parent_column_id) = @p2`

	definitionQuery = `SELECT COLUMN_NAME, DATA_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = @p1
ORDER BY ORDINAL_POSITION`
)

// Engine implements engine.Engine for SQL Server.
type Engine struct {
	engine.BaseSQLEngine
}

// New creates a new SQL Server engine instance.
// If logger is nil, a discard logger is used.
func New(cfg core.ConnectionConfig, logger *slog.Logger) *Engine {
	e := &Engine{BaseSQLEngine: engine.NewBaseSQLEngine(cfg, dialect.MSSQL, logger)}
	e.NormalizeValue = normalizeValue
	return e
}

// Connect opens the connection pool.
func (e *Engine) Connect(ctx context.Context) bool {
	return e.ConnectWith(ctx, "sqlserver", buildDSN(e.Cfg))
}

// buildDSN constructs a sqlserver:// URL. Options become query parameters
// (encrypt, TrustServerCertificate, "connection timeout", ...).
func buildDSN(cfg core.ConnectionConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	u := &url.URL{
		Scheme: "sqlserver",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}

	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// normalizeValue renders UNIQUEIDENTIFIER bytes in their canonical text form.
func normalizeValue(dbType string, v any) any {
	b, ok := v.([]byte)
	if !ok || !strings.EqualFold(dbType, "UNIQUEIDENTIFIER") {
		return v
	}
	var id mssql.UniqueIdentifier
	if err := id.Scan(b); err != nil {
		return v
	}
	return id.String()
}

// GetTables lists base tables, excluding the replication and spt_ system tables.
func (e *Engine) GetTables(ctx context.Context) []string {
	return e.TableNames(ctx, tablesQuery)
}

// GetColumns introspects a table from INFORMATION_SCHEMA.
func (e *Engine) GetColumns(ctx context.Context, table string) []core.Column {
	return e.ScanColumns(ctx, table, scanColumn, func(ctx context.Context, column string) *core.ForeignKey {
		return e.ForeignKey(ctx, foreignKeyQuery, table, column)
	}, columnsQuery, table)
}

func scanColumn(rows *sql.Rows) (core.Column, error) {
	var col core.Column
	var nullable string
	var pk int
	if err := rows.Scan(&col.Name, &col.Type, &nullable, &pk); err != nil {
		return core.Column{}, err
	}
	col.IsNullable = nullable == "YES"
	col.IsPrimaryKey = pk == 1
	return col, nil
}

// GetTableCreationSQL assembles a CREATE TABLE statement from INFORMATION_SCHEMA.COLUMNS.
func (e *Engine) GetTableCreationSQL(ctx context.Context, table string) string {
	if e.DB == nil {
		return ""
	}

	rows, err := e.DB.QueryContext(ctx, definitionQuery, table)
	if err != nil {
		e.Logger.Warn("failed to load table definition", slog.String("table", table), slog.Any("error", err))
		return ""
	}
	defer func() { _ = rows.Close() }()

	var defs []string
	for rows.Next() {
		var name, typ, nullable string
		var length sql.NullInt64
		if err := rows.Scan(&name, &typ, &length, &nullable); err != nil {
			e.Logger.Warn("failed to scan table definition", slog.String("table", table), slog.Any("error", err))
			return ""
		}
		defs = append(defs, columnDefinition(e.Dialect, name, typ, length, nullable == "YES"))
	}
	if err := rows.Err(); err != nil || len(defs) == 0 {
		return ""
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", e.Dialect.QuoteIdentifier(table), strings.Join(defs, ",\n  "))
}

func columnDefinition(d *dialect.Dialect, name, typ string, length sql.NullInt64, nullable bool) string {
	def := d.QuoteIdentifier(name) + " " + typ
	if length.Valid {
		if length.Int64 < 0 {
			def += "(max)"
		} else {
			def += fmt.Sprintf("(%d)", length.Int64)
		}
	}
	if nullable {
		return def + " NULL"
	}
	return def + " NOT NULL"
}

// GetVersion returns @@VERSION.
func (e *Engine) GetVersion(ctx context.Context) string {
	return e.QueryScalar(ctx, "SELECT @@VERSION")
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
