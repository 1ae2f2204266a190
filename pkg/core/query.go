package core

// WhereEntry is one dialect-neutral predicate fragment.
// Entries are ANDed together by the renderer.
type WhereEntry struct {
	Column     string `json:"column"`
	Operator   string `json:"operator"`
	Value      any    `json:"value"`
	UseRawCast bool   `json:"useRawCast"`
}

// Row is a single result row keyed by column name.
type Row = map[string]any

// QueryResponse holds a page of rows.
// SQL is the statement that produced them, for display only.
type QueryResponse struct {
	Rows []Row  `json:"rows"`
	SQL  string `json:"sql,omitempty"`
}
