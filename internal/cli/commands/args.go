package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"github.com/shopspring/decimal"
)

// assignment is one column=value pair from the command line.
type assignment struct {
	Column string
	Value  string
}

// parseAssignments splits col=value arguments. Only the first '=' separates,
// so values may contain '='.
func parseAssignments(flag string, values []string) ([]assignment, error) {
	out := make([]assignment, 0, len(values))
	for _, v := range values {
		col, val, ok := strings.Cut(v, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --%s %q, expected column=value", flag, v)
		}
		out = append(out, assignment{Column: col, Value: val})
	}
	return out, nil
}

// parseFilter turns --where arguments into the filter map engines accept.
// A repeated column keeps its last value.
func parseFilter(values []string) (map[string]any, error) {
	pairs, err := parseAssignments("where", values)
	if err != nil {
		return nil, err
	}
	filter := make(map[string]any, len(pairs))
	for _, p := range pairs {
		filter[p.Column] = p.Value
	}
	return filter, nil
}

// coerceValue converts a command-line string to the Go type the column
// stores, so document stores do not persist numbers as strings. Values that
// do not parse are passed through and left to the backend to reject.
func coerceValue(engineType string, col *core.Column, raw string) any {
	if col == nil {
		return raw
	}

	class := dialect.ClassText
	if d, ok := dialect.Get(engineType); ok {
		class = d.Classify(col.Type)
	}
	if col.IsNumeric {
		class = dialect.ClassNumeric
	}

	switch class {
	case dialect.ClassNumeric:
		n, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return raw
		}
		if n.IsInteger() {
			if i := n.BigInt(); i.IsInt64() {
				return i.Int64()
			}
		}
		if engineType == core.TypeMongoDB {
			return n.InexactFloat64()
		}
		return n.String()
	case dialect.ClassBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			return b
		}
	}
	return raw
}

// primaryKeyColumn picks the key column for mutations: the explicit flag,
// else the table's first primary key.
func primaryKeyColumn(explicit string, columns []core.Column) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if pk := core.PrimaryKeyColumn(columns); pk != nil {
		return pk.Name, nil
	}
	return "", fmt.Errorf("table has no primary key, pass --pk-column")
}
