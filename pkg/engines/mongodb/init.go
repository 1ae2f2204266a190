// Package mongodb provides the MongoDB engine for dbdeck.
//
// This file registers the MongoDB engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/dbdeck/pkg/engines/mongodb"
package mongodb

import (
	"log/slog"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

func init() {
	engine.Register(core.TypeMongoDB, func(cfg core.ConnectionConfig, logger *slog.Logger) engine.Engine {
		return New(cfg, logger)
	})
}
