package mssql

import (
	"context"
	"database/sql"
	"net/url"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/dbdeck/internal/testutil"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := New(core.ConnectionConfig{Type: core.TypeMSSQL}, testutil.NewTestLogger(t))
	e.DB = db
	return e, mock
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(core.ConnectionConfig{
		Host:     "sql.internal",
		Port:     1433,
		Database: "Sales",
		Username: "sa",
		Password: "Pa$$w0rd;x",
		Options:  map[string]string{"encrypt": "true", "TrustServerCertificate": "true"},
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "sql.internal:1433", u.Host)
	assert.Equal(t, "sa", u.User.Username())
	pass, _ := u.User.Password()
	assert.Equal(t, "Pa$$w0rd;x", pass)
	assert.Equal(t, "Sales", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
	assert.Equal(t, "true", u.Query().Get("TrustServerCertificate"))
}

func TestBuildDSN_ConnectionString(t *testing.T) {
	assert.Equal(t, "sqlserver://x", buildDSN(core.ConnectionConfig{ConnectionString: "sqlserver://x"}))
}

func TestNormalizeValue(t *testing.T) {
	id := mssql.UniqueIdentifier{0x6F, 0x96, 0x19, 0xFF, 0x8B, 0x86, 0xD0, 0x11, 0xB4, 0x2D, 0x00, 0xC0, 0x4F, 0xC9, 0x64, 0xFF}
	raw, err := id.Value()
	require.NoError(t, err)

	assert.Equal(t, id.String(), normalizeValue("UNIQUEIDENTIFIER", raw))
	assert.Equal(t, []byte("abc"), normalizeValue("VARBINARY", []byte("abc")), "other byte columns are left alone")
	assert.Equal(t, 42, normalizeValue("INT", 42))
}

func TestEngine_GetTables(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery(tablesQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("Customers").AddRow("Orders"))

	assert.Equal(t, []string{"Customers", "Orders"}, e.GetTables(context.Background()))
}

func TestEngine_GetColumns(t *testing.T) {
	e, mock := newMockEngine(t)
	fkCols := []string{"table", "column"}

	mock.ExpectQuery(columnsQuery).WithArgs("Orders").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "IS_NULLABLE", "IS_PRIMARY_KEY"}).
			AddRow("OrderID", "int", "NO", 1).
			AddRow("CustomerID", "nchar", "YES", 0).
			AddRow("Shipped", "bit", "NO", 0))
	mock.ExpectQuery(foreignKeyQuery).WithArgs("Orders", "OrderID").WillReturnRows(sqlmock.NewRows(fkCols))
	mock.ExpectQuery(foreignKeyQuery).WithArgs("Orders", "CustomerID").
		WillReturnRows(sqlmock.NewRows(fkCols).AddRow("Customers", "CustomerID"))
	mock.ExpectQuery(foreignKeyQuery).WithArgs("Orders", "Shipped").WillReturnRows(sqlmock.NewRows(fkCols))

	cols := e.GetColumns(context.Background(), "Orders")
	require.Len(t, cols, 3)
	assert.True(t, cols[0].IsPrimaryKey)
	assert.True(t, cols[0].IsNumeric)
	assert.True(t, cols[1].IsPlainText)
	assert.Equal(t, &core.ForeignKey{Table: "Customers", Column: "CustomerID"}, cols[1].ForeignKey)
	assert.False(t, cols[2].IsEditable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_GetRows_OffsetFetch(t *testing.T) {
	e, mock := newMockEngine(t)
	cols := []core.Column{{Name: "OrderID", Type: "int", IsPrimaryKey: true, IsNumeric: true}}
	mock.ExpectQuery("SELECT * FROM [Orders] WHERE [OrderID] = @p1 ORDER BY [OrderID] OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"OrderID"}).AddRow(int64(7)))

	resp := e.GetRows(context.Background(), "Orders", cols, 10, 20, map[string]any{"OrderID": "7"})
	require.NotNil(t, resp)
	assert.Equal(t, []core.Row{{"OrderID": int64(7)}}, resp.Rows)
}

func TestEngine_GetTableCreationSQL(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery(definitionQuery).WithArgs("Notes").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "IS_NULLABLE"}).
			AddRow("ID", "int", nil, "NO").
			AddRow("Title", "nvarchar", int64(80), "YES").
			AddRow("Body", "nvarchar", int64(-1), "YES"))

	want := "CREATE TABLE [Notes] (\n  [ID] int NOT NULL,\n  [Title] nvarchar(80) NULL,\n  [Body] nvarchar(max) NULL\n);"
	assert.Equal(t, want, e.GetTableCreationSQL(context.Background(), "Notes"))
}

func TestColumnDefinition(t *testing.T) {
	assert.Equal(t, "[a]]b] varchar(10) NOT NULL",
		columnDefinition(dialect.MSSQL, "a]b", "varchar", sql.NullInt64{Int64: 10, Valid: true}, false))
}

func TestEngine_GetVersion(t *testing.T) {
	e, mock := newMockEngine(t)
	mock.ExpectQuery("SELECT @@VERSION").
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow("Microsoft SQL Server 2022 (RTM) - 16.0.1000.6"))

	assert.Equal(t, "Microsoft SQL Server 2022 (RTM) - 16.0.1000.6", e.GetVersion(context.Background()))
}
