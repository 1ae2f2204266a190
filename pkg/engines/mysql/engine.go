// Package mysql provides the MySQL and MariaDB engine for dbdeck.
package mysql

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

const (
	tablesQuery = "SELECT TABLE_NAME FROM information_schema.TABLES " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME"

	foreignKeyQuery = "SELECT REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME " +
		"FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE " +
		"WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ? " +
		"AND REFERENCED_TABLE_NAME IS NOT NULL LIMIT 1"
)

// Engine implements engine.Engine for MySQL.
type Engine struct {
	engine.BaseSQLEngine
}

// New creates a new MySQL engine instance.
// If logger is nil, a discard logger is used.
func New(cfg core.ConnectionConfig, logger *slog.Logger) *Engine {
	return &Engine{BaseSQLEngine: engine.NewBaseSQLEngine(cfg, dialect.MySQL, logger)}
}

// Connect opens the connection pool.
func (e *Engine) Connect(ctx context.Context) bool {
	return e.ConnectWith(ctx, "mysql", buildDSN(e.Cfg))
}

// buildDSN constructs a go-sql-driver DSN. A configured connection string wins.
func buildDSN(cfg core.ConnectionConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	c := mysql.NewConfig()
	c.User = cfg.Username
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	c.DBName = cfg.Database
	c.ParseTime = true

	if v := cfg.Option("tls", ""); v != "" {
		c.TLSConfig = v
	}
	if v := cfg.Option("timeout", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		}
	}
	return c.FormatDSN()
}

// GetTables lists base tables of the current database.
func (e *Engine) GetTables(ctx context.Context) []string {
	return e.TableNames(ctx, tablesQuery)
}

// GetColumns introspects a table with SHOW COLUMNS.
func (e *Engine) GetColumns(ctx context.Context, table string) []core.Column {
	query := "SHOW COLUMNS FROM " + e.Dialect.QuoteIdentifier(table)
	return e.ScanColumns(ctx, table, scanColumn, func(ctx context.Context, column string) *core.ForeignKey {
		return e.ForeignKey(ctx, foreignKeyQuery, table, column)
	}, query)
}

func scanColumn(rows *sql.Rows) (core.Column, error) {
	var field, typ, null, key string
	var def, extra sql.NullString
	if err := rows.Scan(&field, &typ, &null, &key, &def, &extra); err != nil {
		return core.Column{}, err
	}
	return core.Column{
		Name:         field,
		Type:         typ,
		IsPrimaryKey: key == "PRI",
		IsNullable:   null == "YES",
	}, nil
}

// GetTableCreationSQL returns the server's own CREATE TABLE statement.
func (e *Engine) GetTableCreationSQL(ctx context.Context, table string) string {
	if e.DB == nil {
		return ""
	}
	var name, ddl string
	query := "SHOW CREATE TABLE " + e.Dialect.QuoteIdentifier(table)
	if err := e.DB.QueryRowContext(ctx, query).Scan(&name, &ddl); err != nil {
		e.Logger.Warn("failed to load table definition", slog.String("table", table), slog.Any("error", err))
		return ""
	}
	return ddl
}

// GetVersion returns the server version string.
func (e *Engine) GetVersion(ctx context.Context) string {
	return e.QueryScalar(ctx, "SELECT VERSION()")
}

// Ensure Engine implements engine.Engine interface
var _ engine.Engine = (*Engine)(nil)
