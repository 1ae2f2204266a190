package core

// ForeignKey points at the column a value references.
// It is a hint for callers and is never enforced by dbdeck.
type ForeignKey struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// Column describes one column (or inferred document field) of a table.
// Values are produced by schema introspection and are not persisted.
type Column struct {
	Name         string      `json:"name" yaml:"name"`
	Type         string      `json:"type" yaml:"type"` // backend-native type name
	IsPrimaryKey bool        `json:"isPrimaryKey" yaml:"is_primary_key"`
	IsNumeric    bool        `json:"isNumeric" yaml:"is_numeric"`
	IsPlainText  bool        `json:"isPlainText" yaml:"is_plain_text"`
	IsNullable   bool        `json:"isNullable" yaml:"is_nullable"`
	IsEditable   bool        `json:"isEditable" yaml:"is_editable"`
	ForeignKey   *ForeignKey `json:"foreignKey,omitempty" yaml:"foreign_key,omitempty"`
}

// FindColumn returns the column with the given name, or nil.
func FindColumn(columns []Column, name string) *Column {
	for i := range columns {
		if columns[i].Name == name {
			return &columns[i]
		}
	}
	return nil
}

// PrimaryKeyColumn returns the first primary key column, or nil.
func PrimaryKeyColumn(columns []Column) *Column {
	for i := range columns {
		if columns[i].IsPrimaryKey {
			return &columns[i]
		}
	}
	return nil
}

// ColumnNames returns the names of columns in order.
func ColumnNames(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}
