package core

// MutationKind identifies the variant of a Mutation.
type MutationKind string

const (
	// MutationCellUpdate changes one cell of one row.
	MutationCellUpdate MutationKind = "cell-update"
	// MutationRowDelete removes one row.
	MutationRowDelete MutationKind = "row-delete"
)

// Mutation is a single pending change awaiting commit.
// The set of implementations is closed: CellUpdate and RowDelete.
type Mutation interface {
	Kind() MutationKind
	TargetTable() string
	isMutation()
}

// CellUpdate sets Column to NewValue on the row identified by PrimaryKey.
type CellUpdate struct {
	Table            string `json:"table"`
	Column           string `json:"column"`
	NewValue         any    `json:"newValue"`
	PrimaryKeyColumn string `json:"primaryKeyColumn"`
	PrimaryKey       any    `json:"primaryKey"`
}

// Kind implements Mutation.
func (CellUpdate) Kind() MutationKind { return MutationCellUpdate }

// TargetTable implements Mutation.
func (m CellUpdate) TargetTable() string { return m.Table }

func (CellUpdate) isMutation() {}

// RowDelete removes the row identified by PrimaryKey.
type RowDelete struct {
	Table            string `json:"table"`
	PrimaryKeyColumn string `json:"primaryKeyColumn"`
	PrimaryKey       any    `json:"primaryKey"`
}

// Kind implements Mutation.
func (RowDelete) Kind() MutationKind { return MutationRowDelete }

// TargetTable implements Mutation.
func (m RowDelete) TargetTable() string { return m.Table }

func (RowDelete) isMutation() {}
