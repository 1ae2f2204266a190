package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParams(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Params
	}{
		{"empty", nil, Params{SchemaSampleSize: 100, AuthSource: "admin"}},
		{"typed", map[string]any{"schema_sample_size": 25, "transactions": true},
			Params{SchemaSampleSize: 25, Transactions: true, AuthSource: "admin"}},
		{"strings", map[string]any{"schema_sample_size": "500", "transactions": "true", "auth_source": "app"},
			Params{SchemaSampleSize: 500, Transactions: true, AuthSource: "app"}},
		{"non-positive sample", map[string]any{"schema_sample_size": 0}, Params{SchemaSampleSize: 100, AuthSource: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeParams(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeParams_Invalid(t *testing.T) {
	_, err := DecodeParams(map[string]any{"schema_sample_size": "lots"})
	assert.ErrorContains(t, err, "invalid mongodb params")
}
