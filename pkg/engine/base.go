package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/leapstack-labs/dbdeck/pkg/where"
)

// BaseSQLEngine provides common database/sql functionality for engines.
// Embed this struct in concrete engine implementations to get the shared
// row retrieval, counting, mutation, raw query and lifecycle operations.
type BaseSQLEngine struct {
	DB      *sql.DB
	Cfg     core.ConnectionConfig
	Dialect *dialect.Dialect
	Logger  *slog.Logger

	// NormalizeValue converts driver-specific values before the default
	// normalization. dbType is the driver's database type name.
	NormalizeValue func(dbType string, v any) any
}

// NewBaseSQLEngine returns a base for the given dialect.
// If logger is nil, a discard logger is used.
func NewBaseSQLEngine(cfg core.ConnectionConfig, d *dialect.Dialect, logger *slog.Logger) BaseSQLEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return BaseSQLEngine{Cfg: cfg, Dialect: d, Logger: logger}
}

// Type returns the dialect name.
func (b *BaseSQLEngine) Type() string {
	return b.Dialect.Name
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLEngine) IsConnected() bool {
	return b.DB != nil
}

// Open opens and pings a database/sql handle.
func (b *BaseSQLEngine) Open(ctx context.Context, driverName, dsn string) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s connection: %w", b.Dialect.Name, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping %s: %w", b.Dialect.Name, err)
	}

	b.DB = db
	return nil
}

// ConnectWith opens the handle and reports failures as false.
func (b *BaseSQLEngine) ConnectWith(ctx context.Context, driverName, dsn string) bool {
	b.Logger.Debug("connecting",
		slog.String("engine", b.Dialect.Name),
		slog.String("host", b.Cfg.Host),
		slog.String("database", b.Cfg.Database))

	if err := b.Open(ctx, driverName, dsn); err != nil {
		b.Logger.Error("connection failed", slog.String("engine", b.Dialect.Name), slog.Any("error", err))
		return false
	}
	return true
}

// IsOkay pings the database.
func (b *BaseSQLEngine) IsOkay(ctx context.Context) bool {
	if b.DB == nil {
		return false
	}
	if err := b.DB.PingContext(ctx); err != nil {
		b.Logger.Warn("liveness check failed", slog.String("engine", b.Dialect.Name), slog.Any("error", err))
		return false
	}
	return true
}

// Disconnect closes the database connection. Safe to call repeatedly.
func (b *BaseSQLEngine) Disconnect(_ context.Context) error {
	if b.DB == nil {
		return nil
	}
	b.Logger.Debug("closing database connection")
	db := b.DB
	b.DB = nil
	return db.Close()
}

// Begin starts a database/sql transaction.
func (b *BaseSQLEngine) Begin(ctx context.Context) (Tx, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}
	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &SQLTx{Tx: tx}, nil
}

// SelectSQL builds the paginated row query for a table.
// A non-positive limit returns every row and ignores offset.
func (b *BaseSQLEngine) SelectSQL(table string, columns []core.Column, limit, offset int, filter map[string]any) (string, []any) {
	d := b.Dialect
	whereSQL, args := where.Clause(d, columns, filter, 1)

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(d.QuoteIdentifier(table))
	sb.WriteString(whereSQL)

	if limit > 0 {
		switch d.Pagination {
		case core.PaginateOffsetFetch:
			order := "(SELECT NULL)"
			if pk := core.PrimaryKeyColumn(columns); pk != nil {
				order = d.QuoteIdentifier(pk.Name)
			}
			fmt.Fprintf(&sb, " ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", order, max(offset, 0), limit)
		default:
			fmt.Fprintf(&sb, " LIMIT %d", limit)
			if offset > 0 {
				fmt.Fprintf(&sb, " OFFSET %d", offset)
			}
		}
	}
	return sb.String(), args
}

// CountSQL builds the row count query for a table.
func (b *BaseSQLEngine) CountSQL(table string, columns []core.Column, filter map[string]any) (string, []any) {
	whereSQL, args := where.Clause(b.Dialect, columns, filter, 1)
	return "SELECT COUNT(*) FROM " + b.Dialect.QuoteIdentifier(table) + whereSQL, args
}

// GetTotalRows counts rows matching the filter. Failures are logged and count as 0.
func (b *BaseSQLEngine) GetTotalRows(ctx context.Context, table string, columns []core.Column, filter map[string]any) int {
	if b.DB == nil {
		return 0
	}

	query, args := b.CountSQL(table, columns, filter)
	var count int64
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		b.Logger.Warn("failed to count rows", slog.String("table", table), slog.Any("error", err))
		return 0
	}
	return int(count)
}

// GetRows returns one window of rows. Failures are logged and return nil.
func (b *BaseSQLEngine) GetRows(ctx context.Context, table string, columns []core.Column, limit, offset int, filter map[string]any) *core.QueryResponse {
	if b.DB == nil {
		return nil
	}

	query, args := b.SelectSQL(table, columns, limit, offset, filter)
	rows, err := b.QueryRows(ctx, query, args...)
	if err != nil {
		b.Logger.Warn("failed to load rows", slog.String("table", table), slog.Any("error", err))
		return nil
	}
	return &core.QueryResponse{Rows: rows, SQL: query}
}

// MutationSQL renders the statement applying m.
func (b *BaseSQLEngine) MutationSQL(m core.Mutation) (string, []any, error) {
	d := b.Dialect
	switch mut := m.(type) {
	case core.CellUpdate:
		return b.updateSQL(mut)
	case *core.CellUpdate:
		return b.updateSQL(*mut)
	case core.RowDelete:
		return fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
			d.QuoteIdentifier(mut.Table), d.QuoteIdentifier(mut.PrimaryKeyColumn), d.FormatPlaceholder(1)), []any{mut.PrimaryKey}, nil
	case *core.RowDelete:
		return b.MutationSQL(*mut)
	default:
		op := "nil mutation"
		if m != nil {
			op = string(m.Kind())
		}
		return "", nil, &core.UnsupportedOperationError{Engine: d.Name, Operation: op}
	}
}

func (b *BaseSQLEngine) updateSQL(m core.CellUpdate) (string, []any, error) {
	d := b.Dialect
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s",
		d.QuoteIdentifier(m.Table),
		d.QuoteIdentifier(m.Column), d.FormatPlaceholder(1),
		d.QuoteIdentifier(m.PrimaryKeyColumn), d.FormatPlaceholder(2))
	return query, []any{m.NewValue, m.PrimaryKey}, nil
}

// CommitChange applies one mutation inside tx.
func (b *BaseSQLEngine) CommitChange(ctx context.Context, m core.Mutation, tx Tx) error {
	exec, err := sqlExecer(tx)
	if err != nil {
		return err
	}

	query, args, err := b.MutationSQL(m)
	if err != nil {
		return err
	}

	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return &core.QueryError{Query: query, Err: err}
	}

	b.Logger.Debug("applied mutation",
		slog.String("kind", string(m.Kind())),
		slog.String("table", m.TargetTable()))
	return nil
}

// RawQuery runs code verbatim. Row-returning statements yield []core.Row,
// anything else yields {"rows_affected": n}.
func (b *BaseSQLEngine) RawQuery(ctx context.Context, code string) (any, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	if returnsRows(code) {
		return b.QueryRows(ctx, code)
	}

	res, err := b.DB.ExecContext(ctx, code)
	if err != nil {
		return nil, &core.QueryError{Query: code, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		affected = -1
	}
	return map[string]any{"rows_affected": affected}, nil
}

// rowKeywords start statements that produce a result set.
var rowKeywords = map[string]struct{}{
	"SELECT": {}, "WITH": {}, "SHOW": {}, "PRAGMA": {}, "EXPLAIN": {},
	"VALUES": {}, "DESCRIBE": {}, "DESC": {}, "TABLE": {},
}

func returnsRows(code string) bool {
	fields := strings.Fields(strings.TrimLeft(code, " \t\r\n("))
	if len(fields) == 0 {
		return false
	}
	_, ok := rowKeywords[strings.ToUpper(fields[0])]
	return ok
}

// QueryRows runs a query and returns every row as a map.
func (b *BaseSQLEngine) QueryRows(ctx context.Context, query string, args ...any) ([]core.Row, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.QueryError{Query: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	return b.scanRows(rows)
}

// QueryStrings runs a single-column query and returns its values.
func (b *BaseSQLEngine) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	if b.DB == nil {
		return nil, ErrNotConnected
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &core.QueryError{Query: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s sql.NullString
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		out = append(out, s.String)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// QueryScalar returns the first column of the first row as text, or "" on
// failure. Failures are logged.
func (b *BaseSQLEngine) QueryScalar(ctx context.Context, query string, args ...any) string {
	if b.DB == nil {
		return ""
	}
	var s sql.NullString
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&s); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			b.Logger.Warn("scalar query failed", slog.String("query", query), slog.Any("error", err))
		}
		return ""
	}
	return s.String
}

func (b *BaseSQLEngine) scanRows(rows *sql.Rows) ([]core.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	dbTypes := make([]string, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			dbTypes[i] = ct.DatabaseTypeName()
		}
	}

	results := make([]core.Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(core.Row, len(cols))
		for i, col := range cols {
			row[col] = b.normalize(dbTypes[i], values[i])
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *BaseSQLEngine) normalize(dbType string, v any) any {
	if b.NormalizeValue != nil {
		v = b.NormalizeValue(dbType, v)
	}
	switch val := v.(type) {
	case []byte:
		// Convert []byte to string for readability
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return v
	}
}

// SQLTx adapts *sql.Tx to Tx.
type SQLTx struct {
	Tx *sql.Tx
}

// Commit commits the transaction.
func (t *SQLTx) Commit(_ context.Context) error { return t.Tx.Commit() }

// Rollback aborts the transaction.
func (t *SQLTx) Rollback(_ context.Context) error { return t.Tx.Rollback() }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sqlExecer(tx Tx) (execer, error) {
	switch t := tx.(type) {
	case *SQLTx:
		if t == nil || t.Tx == nil {
			return nil, errors.New("a transaction is required")
		}
		return t.Tx, nil
	case nil:
		return nil, errors.New("a transaction is required")
	default:
		return nil, fmt.Errorf("transaction %T is not a SQL transaction", tx)
	}
}

// ColumnScanner reads one introspection row into a Column. Classification
// flags are filled in afterwards from the dialect.
type ColumnScanner func(rows *sql.Rows) (core.Column, error)

// ForeignKeyLookup resolves the reference of one column, or returns nil.
type ForeignKeyLookup func(ctx context.Context, column string) *core.ForeignKey

// ScanColumns runs an introspection query and returns the classified columns
// in result order. Foreign keys are resolved after the result set is closed,
// one lookup per column. Failures are logged and return an empty slice.
func (b *BaseSQLEngine) ScanColumns(ctx context.Context, table string, scan ColumnScanner, fk ForeignKeyLookup, query string, args ...any) []core.Column {
	columns := make([]core.Column, 0)
	if b.DB == nil {
		return columns
	}

	rows, err := b.DB.QueryContext(ctx, query, args...)
	if err != nil {
		b.Logger.Warn("failed to load columns", slog.String("table", table), slog.Any("error", err))
		return columns
	}
	for rows.Next() {
		col, err := scan(rows)
		if err != nil {
			_ = rows.Close()
			b.Logger.Warn("failed to scan column", slog.String("table", table), slog.Any("error", err))
			return make([]core.Column, 0)
		}
		columns = append(columns, col)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		b.Logger.Warn("error iterating columns", slog.String("table", table), slog.Any("error", err))
		return make([]core.Column, 0)
	}

	for i := range columns {
		b.Dialect.ClassifyColumn(&columns[i])
		if fk != nil {
			columns[i].ForeignKey = fk(ctx, columns[i].Name)
		}
	}
	return columns
}

// ForeignKey runs a lookup selecting (table, column) and returns the first
// row, or nil when there is none.
func (b *BaseSQLEngine) ForeignKey(ctx context.Context, query string, args ...any) *core.ForeignKey {
	if b.DB == nil {
		return nil
	}
	var fk core.ForeignKey
	if err := b.DB.QueryRowContext(ctx, query, args...).Scan(&fk.Table, &fk.Column); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			b.Logger.Debug("foreign key lookup failed", slog.Any("error", err))
		}
		return nil
	}
	return &fk
}

// TableNames runs a single-column catalog query. Failures are logged and
// return an empty slice.
func (b *BaseSQLEngine) TableNames(ctx context.Context, query string, args ...any) []string {
	if b.DB == nil {
		return []string{}
	}
	names, err := b.QueryStrings(ctx, query, args...)
	if err != nil {
		b.Logger.Warn("failed to list tables", slog.String("engine", b.Dialect.Name), slog.Any("error", err))
		return []string{}
	}
	if names == nil {
		return []string{}
	}
	return names
}
