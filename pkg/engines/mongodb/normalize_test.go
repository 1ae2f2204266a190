package mongodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizeDocument(t *testing.T) {
	oid, _ := primitive.ObjectIDFromHex("65a1f0c2e4b0a1b2c3d4e5f6")
	joined := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	dec, _ := primitive.ParseDecimal128("12.50")

	row := NormalizeDocument(bson.M{
		"_id":     oid,
		"name":    "ada",
		"age":     int32(36),
		"joined":  primitive.NewDateTimeFromTime(joined),
		"balance": dec,
		"tags":    bson.A{"a", "b"},
		"address": bson.M{"city": "Oslo", "zip": "0150"},
		"nested":  bson.D{{Key: "owner", Value: oid}},
		"gone":    primitive.Null{},
	})

	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", row["_id"])
	assert.Equal(t, "ada", row["name"])
	assert.Equal(t, int32(36), row["age"])
	assert.Equal(t, "2024-03-09T14:30:00Z", row["joined"])
	assert.Equal(t, "12.50", row["balance"])
	assert.Equal(t, `["a","b"]`, row["tags"])
	assert.Equal(t, `{"city":"Oslo","zip":"0150"}`, row["address"])
	assert.Equal(t, `{"owner":"65a1f0c2e4b0a1b2c3d4e5f6"}`, row["nested"])
	assert.Nil(t, row["gone"])
}
