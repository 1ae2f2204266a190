package core

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (MySQL, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
	// PlaceholderAtP uses @p1, @p2, etc. for parameters (SQL Server).
	PlaceholderAtP
)

// PaginationStyle defines how a dialect limits a result window.
type PaginationStyle int

const (
	// PaginateLimitOffset appends LIMIT n OFFSET m.
	PaginateLimitOffset PaginationStyle = iota
	// PaginateOffsetFetch appends ORDER BY ... OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	PaginateOffsetFetch
)

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Quote character: ", `, [
	QuoteEnd string // End quote character (usually same as Quote, ] for [)
	Escape   string // Escape sequence for QuoteEnd inside a name: "", ``, ]]
}
