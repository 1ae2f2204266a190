// Package where translates a flat column filter map into dialect-aware
// predicate fragments and bound parameters.
//
// The operator for a column is chosen from the column's type metadata, never
// from the runtime type of the filter value: a numeric column gets an exact
// match even when the filter arrives as a string. Filters naming columns that
// are not in the supplied schema are dropped without error.
package where

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/shopspring/decimal"
)

// Equal is the exact-match operator.
const Equal = "="

// Build returns one entry per filtered column, in schema order.
// Nil and empty-string filter values are treated as "no filter".
func Build(d *dialect.Dialect, columns []core.Column, filter map[string]any) []core.WhereEntry {
	entries := make([]core.WhereEntry, 0, len(filter))
	if len(filter) == 0 {
		return entries
	}

	for _, col := range columns {
		value, ok := filter[col.Name]
		if !ok || isBlank(value) {
			continue
		}
		entries = append(entries, entryFor(d, col, value))
	}
	return entries
}

func entryFor(d *dialect.Dialect, col core.Column, value any) core.WhereEntry {
	class := d.Classify(col.Type)
	if col.IsNumeric {
		class = dialect.ClassNumeric
	}

	entry := core.WhereEntry{Column: col.Name, Operator: Equal, Value: value}
	s, isString := value.(string)

	switch class {
	case dialect.ClassNumeric:
		if !isString {
			return entry
		}
		n, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			// Compare the text form so a non-numeric filter matches nothing
			// instead of failing the query.
			entry.UseRawCast = true
			return entry
		}
		entry.Value = numericArg(n)
		return entry

	case dialect.ClassBoolean:
		if !isString {
			return entry
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			entry.Value = b
			return entry
		}
		entry.UseRawCast = true
		return entry

	case dialect.ClassTemporal:
		entry.UseRawCast = isString
		return entry

	case dialect.ClassUUID:
		if !isString {
			entry.Value = fmt.Sprint(value)
			return entry
		}
		if id, err := uuid.Parse(strings.TrimSpace(s)); err == nil {
			entry.Value = id.String()
			return entry
		}
		// Partial identifiers match by substring of the text form.
		return core.WhereEntry{
			Column:     col.Name,
			Operator:   d.LikeOperator,
			Value:      "%" + s + "%",
			UseRawCast: true,
		}

	default:
		// Types off the allow-lists (json, enums, inet, arrays) may have no
		// LIKE operator of their own.
		return core.WhereEntry{
			Column:     col.Name,
			Operator:   d.LikeOperator,
			Value:      "%" + fmt.Sprint(value) + "%",
			UseRawCast: class != dialect.ClassText && !col.IsPlainText && d.TextCast != "",
		}
	}
}

// numericArg binds integers as int64 and everything else as exact decimal text.
func numericArg(n decimal.Decimal) any {
	if n.IsInteger() {
		if i := n.BigInt(); i.IsInt64() {
			return i.Int64()
		}
	}
	return n.String()
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// Render joins entries with AND, quoting identifiers and numbering
// placeholders from start (1-based).
func Render(d *dialect.Dialect, entries []core.WhereEntry, start int) (string, []any) {
	if len(entries) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries))
	for i, e := range entries {
		col := d.QuoteIdentifier(e.Column)
		if e.UseRawCast {
			col = d.CastToText(col)
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", col, e.Operator, d.FormatPlaceholder(start+i)))
		args = append(args, e.Value)
	}
	return strings.Join(parts, " AND "), args
}

// Clause builds and renders a filter as a complete " WHERE ..." suffix.
// It returns an empty string and no args when nothing applies.
func Clause(d *dialect.Dialect, columns []core.Column, filter map[string]any, start int) (string, []any) {
	predicate, args := Render(d, Build(d, columns, filter), start)
	if predicate == "" {
		return "", nil
	}
	return " WHERE " + predicate, args
}
