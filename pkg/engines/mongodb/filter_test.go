package mongodb

import (
	"testing"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var sampleColumns = []core.Column{
	{Name: "_id", Type: "objectId", IsPrimaryKey: true},
	{Name: "name", Type: "string | null", IsPlainText: true},
	{Name: "age", Type: "int | double", IsNumeric: true},
	{Name: "active", Type: "bool"},
}

func regex(s string) bson.D {
	return bson.D{{Key: "$regex", Value: s}, {Key: "$options", Value: "i"}}
}

func TestBuildFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	tests := []struct {
		name   string
		filter map[string]any
		want   bson.D
	}{
		{"empty", nil, bson.D{}},
		{"text is a case-insensitive substring", map[string]any{"name": "Ali"},
			bson.D{{Key: "name", Value: regex("Ali")}}},
		{"regex metacharacters are literal", map[string]any{"name": "a.b*"},
			bson.D{{Key: "name", Value: regex(`a\.b\*`)}}},
		{"integer", map[string]any{"age": "30"}, bson.D{{Key: "age", Value: int64(30)}}},
		{"fraction", map[string]any{"age": " 2.5 "}, bson.D{{Key: "age", Value: 2.5}}},
		{"non-numeric text on a numeric field", map[string]any{"age": "old"},
			bson.D{{Key: "age", Value: regex("old")}}},
		{"boolean", map[string]any{"active": "true"}, bson.D{{Key: "active", Value: true}}},
		{"object id", map[string]any{"_id": oid.Hex()}, bson.D{{Key: "_id", Value: oid}}},
		{"partial object id", map[string]any{"_id": "65a1"}, bson.D{{Key: "_id", Value: regex("65a1")}}},
		{"typed values pass through", map[string]any{"age": 7}, bson.D{{Key: "age", Value: 7}}},
		{"blank and unknown are dropped", map[string]any{"name": "", "age": nil, "ghost": "x"}, bson.D{}},
		{"fields follow schema order", map[string]any{"active": "false", "name": "a", "_id": oid.Hex()},
			bson.D{{Key: "_id", Value: oid}, {Key: "name", Value: regex("a")}, {Key: "active", Value: false}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildFilter(sampleColumns, tt.filter))
		})
	}
}

func TestBuildFilter_NoSchema(t *testing.T) {
	assert.Empty(t, BuildFilter(nil, map[string]any{"city": "oslo", "zip": 150}))
	assert.Empty(t, BuildFilter([]core.Column{}, map[string]any{"city": "oslo"}))
}
