package mongodb

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/dialect"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

const typeSeparator = " | "

// typeAlias returns the $type alias of a BSON type.
func typeAlias(t bsontype.Type) string {
	switch t {
	case bsontype.Double:
		return "double"
	case bsontype.String:
		return "string"
	case bsontype.EmbeddedDocument:
		return "object"
	case bsontype.Array:
		return "array"
	case bsontype.Binary:
		return "binData"
	case bsontype.Undefined:
		return "undefined"
	case bsontype.ObjectID:
		return "objectId"
	case bsontype.Boolean:
		return "bool"
	case bsontype.DateTime:
		return "date"
	case bsontype.Null:
		return "null"
	case bsontype.Regex:
		return "regex"
	case bsontype.JavaScript, bsontype.CodeWithScope:
		return "javascript"
	case bsontype.Symbol:
		return "symbol"
	case bsontype.Int32:
		return "int"
	case bsontype.Timestamp:
		return "timestamp"
	case bsontype.Int64:
		return "long"
	case bsontype.Decimal128:
		return "decimal"
	case bsontype.MinKey:
		return "minKey"
	case bsontype.MaxKey:
		return "maxKey"
	default:
		return "unknown"
	}
}

// schemaBuilder accumulates the observed types of top-level fields.
type schemaBuilder struct {
	order []string
	types map[string][]string
}

func newSchemaBuilder() *schemaBuilder {
	return &schemaBuilder{types: make(map[string][]string)}
}

// Add records every top-level field of one document.
func (s *schemaBuilder) Add(doc bson.Raw) error {
	elems, err := doc.Elements()
	if err != nil {
		return err
	}
	for _, el := range elems {
		key := el.Key()
		alias := typeAlias(el.Value().Type)

		seen, ok := s.types[key]
		if !ok {
			s.order = append(s.order, key)
		}
		if !slices.Contains(seen, alias) {
			s.types[key] = append(seen, alias)
		}
	}
	return nil
}

// Columns returns the inferred columns, _id first and the rest in the
// order they were first seen. Every field is nullable since any document
// may omit it.
func (s *schemaBuilder) Columns(d *dialect.Dialect) []core.Column {
	columns := make([]core.Column, 0, len(s.order))
	for _, name := range s.order {
		columns = append(columns, inferColumn(d, name, s.types[name]))
	}

	if i := slices.IndexFunc(columns, func(c core.Column) bool { return c.Name == IDField }); i > 0 {
		id := columns[i]
		columns = slices.Delete(columns, i, i+1)
		columns = slices.Insert(columns, 0, id)
	}
	return columns
}

func inferColumn(d *dialect.Dialect, name string, types []string) core.Column {
	col := core.Column{
		Name:         name,
		Type:         strings.Join(types, typeSeparator),
		IsPrimaryKey: name == IDField,
		IsNullable:   true,
	}

	editable := false
	for _, t := range types {
		switch d.Classify(t) {
		case dialect.ClassNumeric:
			col.IsNumeric = true
			editable = true
		case dialect.ClassText:
			col.IsPlainText = true
			editable = true
		case dialect.ClassBoolean:
			editable = true
		}
	}
	col.IsEditable = editable && !col.IsPrimaryKey
	return col
}
