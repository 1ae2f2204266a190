package mongodb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DefaultSampleSize is the number of documents GetColumns inspects.
const DefaultSampleSize = 100

// Params are the engine-specific settings read from ConnectionConfig.Params.
type Params struct {
	// SchemaSampleSize bounds the documents sampled to infer fields.
	SchemaSampleSize int `mapstructure:"schema_sample_size"`
	// Transactions runs commit batches in a session transaction.
	// Requires a replica set or sharded cluster.
	Transactions bool `mapstructure:"transactions"`
	// AuthSource is the authentication database used when building a URI.
	AuthSource string `mapstructure:"auth_source"`
}

// DecodeParams reads Params from a loosely typed map. Values given as
// strings (from env or flags) are converted.
func DecodeParams(raw map[string]any) (Params, error) {
	p := Params{SchemaSampleSize: DefaultSampleSize, AuthSource: "admin"}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if err := dec.Decode(raw); err != nil {
		return p, fmt.Errorf("invalid mongodb params: %w", err)
	}

	if p.SchemaSampleSize <= 0 {
		p.SchemaSampleSize = DefaultSampleSize
	}
	if p.AuthSource == "" {
		p.AuthSource = "admin"
	}
	return p, nil
}
