package mongodb

import (
	"encoding/json"
	"time"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NormalizeDocument converts a decoded document into a display row.
// ObjectIds become hex, dates become RFC 3339 text, and embedded documents
// and arrays become JSON text.
func NormalizeDocument(doc bson.M) core.Row {
	row := make(core.Row, len(doc))
	for k, v := range doc {
		row[k] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return val.String()
	case primitive.Null, primitive.Undefined:
		return nil
	case bson.M, bson.D, bson.A, primitive.Binary, primitive.Regex, primitive.Timestamp:
		b, err := json.Marshal(plain(val))
		if err != nil {
			return nil
		}
		return string(b)
	default:
		return v
	}
}

// plain rewrites BSON values into types encoding/json renders readably.
func plain(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = plain(x)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = plain(x)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339Nano)
	case primitive.Decimal128:
		return val.String()
	case primitive.Binary:
		return val.Data
	case primitive.Regex:
		return "/" + val.Pattern + "/" + val.Options
	case primitive.Timestamp:
		return map[string]uint32{"t": val.T, "i": val.I}
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

// normalizeAll converts decoded documents into rows.
func normalizeAll(docs []bson.M) []core.Row {
	rows := make([]core.Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, NormalizeDocument(d))
	}
	return rows
}
