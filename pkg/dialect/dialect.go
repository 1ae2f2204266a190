// Package dialect provides per-backend query syntax and type classification.
//
// A Dialect is pure data: identifier quoting, placeholder style, the
// case-insensitive match operator, the text cast used when a filter string is
// compared against a typed column, the pagination clause style, and static
// allow-lists classifying backend type names. Classification never queries the
// backend, so custom or extension types fall back to ClassOther.
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// Class is the filter-relevant classification of a column type.
type Class int

const (
	// ClassOther is any type not covered by an allow-list; filtered as text.
	ClassOther Class = iota
	// ClassText is a plain-text type.
	ClassText
	// ClassNumeric is a numeric type.
	ClassNumeric
	// ClassBoolean is a boolean or bit type.
	ClassBoolean
	// ClassTemporal is a date, time or timestamp type.
	ClassTemporal
	// ClassUUID is a UUID or uniqueidentifier type.
	ClassUUID
)

// String returns the string representation of Class.
func (c Class) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassNumeric:
		return "numeric"
	case ClassBoolean:
		return "boolean"
	case ClassTemporal:
		return "temporal"
	case ClassUUID:
		return "uuid"
	default:
		return "other"
	}
}

// Dialect represents the query configuration of one backend family.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig
	Placeholder core.PlaceholderStyle
	Pagination  core.PaginationStyle

	// LikeOperator is the substring-match operator ("LIKE" or "ILIKE").
	LikeOperator string
	// TextCast is a fmt pattern casting a quoted column to text, e.g. "%s::text".
	TextCast string

	numeric   []string
	plainText []string
	boolean   []string
	temporal  []string
	uuid      []string
}

// FormatPlaceholder returns the placeholder for the index-th (1-based) parameter.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case core.PlaceholderAtP:
		return "@p" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	if d.Identifiers.Quote == "" {
		return name
	}
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// CastToText wraps an already-quoted column expression in the dialect's text cast.
func (d *Dialect) CastToText(quoted string) string {
	if d.TextCast == "" {
		return quoted
	}
	return fmt.Sprintf(d.TextCast, quoted)
}

// IsNumericType reports whether typeName is on the numeric allow-list.
func (d *Dialect) IsNumericType(typeName string) bool {
	return matchesType(d.numeric, typeName)
}

// IsPlainTextType reports whether typeName is on the plain-text allow-list.
func (d *Dialect) IsPlainTextType(typeName string) bool {
	return matchesType(d.plainText, typeName)
}

// IsEditableType reports whether cells of typeName can be edited as scalars.
func (d *Dialect) IsEditableType(typeName string) bool {
	return d.IsNumericType(typeName) || d.IsPlainTextType(typeName)
}

// Classify returns the filter class of typeName.
// Numeric wins over boolean so MySQL tinyint stays numeric.
func (d *Dialect) Classify(typeName string) Class {
	switch {
	case d.IsNumericType(typeName):
		return ClassNumeric
	case matchesType(d.boolean, typeName):
		return ClassBoolean
	case matchesType(d.uuid, typeName):
		return ClassUUID
	case matchesType(d.temporal, typeName):
		return ClassTemporal
	case d.IsPlainTextType(typeName):
		return ClassText
	default:
		return ClassOther
	}
}

// ClassifyColumn fills the type-derived flags of a column.
func (d *Dialect) ClassifyColumn(col *core.Column) {
	col.IsNumeric = d.IsNumericType(col.Type)
	col.IsPlainText = d.IsPlainTextType(col.Type)
	col.IsEditable = !col.IsPrimaryKey && d.IsEditableType(col.Type)
}

// baseType lowercases a type name and drops size/precision suffixes:
// "VARCHAR(255)" -> "varchar", "int(11) unsigned" -> "int unsigned".
func baseType(typeName string) string {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if open := strings.IndexByte(t, '('); open >= 0 {
		rest := ""
		if end := strings.IndexByte(t[open:], ')'); end >= 0 {
			rest = t[open+end+1:]
		}
		t = strings.TrimSpace(t[:open]) + rest
	}
	return strings.TrimSpace(t)
}

// matchesType matches exact names and names followed by modifiers,
// so "int" matches "int unsigned" but not "interval".
func matchesType(list []string, typeName string) bool {
	t := baseType(typeName)
	if t == "" {
		return false
	}
	for _, name := range list {
		if t == name || strings.HasPrefix(t, name+" ") {
			return true
		}
	}
	return false
}
