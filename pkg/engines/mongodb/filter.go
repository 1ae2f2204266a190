package mongodb

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDField is the primary key of every collection.
const IDField = "_id"

// BuildFilter translates a column filter into a query document.
//
// String values become case-insensitive substring matches unless the field
// is numeric or boolean in the sampled schema, in which case they are parsed
// and matched exactly. A 24-digit hex _id matches the ObjectId. Fields follow
// the order of columns; filters on fields outside them are dropped.
func BuildFilter(columns []core.Column, filter map[string]any) bson.D {
	doc := bson.D{}
	if len(filter) == 0 {
		return doc
	}

	for i := range columns {
		col := &columns[i]
		value, ok := filter[col.Name]
		if !ok || value == nil || value == "" {
			continue
		}
		doc = append(doc, bson.E{Key: col.Name, Value: condition(col, col.Name, value)})
	}
	return doc
}

func condition(col *core.Column, key string, value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	s = strings.TrimSpace(s)

	if key == IDField {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}

	if col != nil && col.IsNumeric {
		if n, err := decimal.NewFromString(s); err == nil {
			return numericValue(n)
		}
	}

	if col != nil && hasType(col.Type, "bool") {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}

	return bson.D{
		{Key: "$regex", Value: regexp.QuoteMeta(s)},
		{Key: "$options", Value: "i"},
	}
}

// numericValue returns an int64 for integral values and a float64 otherwise.
// The server compares numeric BSON types by value.
func numericValue(n decimal.Decimal) any {
	if n.IsInteger() {
		if i := n.BigInt(); i.IsInt64() {
			return i.Int64()
		}
	}
	return n.InexactFloat64()
}

// hasType reports whether a " | " joined type union contains name.
func hasType(union, name string) bool {
	return slices.Contains(splitTypes(union), name)
}

func splitTypes(union string) []string {
	if union == "" {
		return nil
	}
	return strings.Split(union, typeSeparator)
}
