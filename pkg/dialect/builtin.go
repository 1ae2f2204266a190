package dialect

import "github.com/leapstack-labs/dbdeck/pkg/core"

// Builtin dialects. Registered automatically when the package is loaded.
var (
	MySQL = NewDialect(core.TypeMySQL).
		Identifiers("`", "`", "``").
		TextCast("CAST(%s AS CHAR)").
		Numeric("tinyint", "smallint", "integer", "mediumint", "int", "bigint",
			"decimal", "numeric", "float", "double").
		PlainText("char", "varchar", "text", "tinytext", "mediumtext", "longtext", "json").
		Boolean("bool", "boolean", "bit").
		Temporal("date", "datetime", "timestamp", "time", "year").
		Build()

	Postgres = NewDialect(core.TypePostgres).
		PlaceholderStyle(core.PlaceholderDollar).
		Like("ILIKE").
		TextCast("%s::text").
		Numeric("smallint", "integer", "bigint", "decimal", "numeric", "real", "double precision").
		PlainText("character varying", "varchar", "character", "char", "text", "citext").
		Boolean("boolean", "bool").
		Temporal("date", "time", "timestamp", "timestamptz", "timetz", "interval").
		UUID("uuid").
		Build()

	MSSQL = NewDialect(core.TypeMSSQL).
		Identifiers("[", "]", "]]").
		PlaceholderStyle(core.PlaceholderAtP).
		Pagination(core.PaginateOffsetFetch).
		TextCast("CAST(%s AS NVARCHAR(MAX))").
		Numeric("tinyint", "smallint", "int", "bigint", "decimal", "numeric", "float", "real").
		PlainText("char", "varchar", "text", "nchar", "nvarchar", "ntext").
		Boolean("bit").
		Temporal("date", "datetime", "datetime2", "smalldatetime", "datetimeoffset", "time").
		UUID("uniqueidentifier").
		Build()

	SQLite = NewDialect(core.TypeSQLite).
		Numeric("integer", "real", "numeric").
		PlainText("text", "varchar", "char", "clob").
		Boolean("boolean").
		Temporal("date", "datetime", "timestamp").
		Build()

	// MongoDB has no SQL syntax; only its type allow-lists are used.
	MongoDB = NewDialect(core.TypeMongoDB).
		Identifiers("", "", "").
		TextCast("").
		Numeric("number", "int", "long", "double", "decimal").
		PlainText("string").
		Boolean("boolean", "bool").
		Temporal("date").
		Build()
)

func init() {
	for _, d := range []*Dialect{MySQL, Postgres, MSSQL, SQLite, MongoDB} {
		Register(d)
	}
}
