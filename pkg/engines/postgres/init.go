// Package postgres provides the PostgreSQL engine for dbdeck.
//
// This file registers the PostgreSQL engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/dbdeck/pkg/engines/postgres"
package postgres

import (
	"log/slog"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

func init() {
	engine.Register(core.TypePostgres, func(cfg core.ConnectionConfig, logger *slog.Logger) engine.Engine {
		return New(cfg, logger)
	})
}
