// Package sqlite provides the embedded SQLite engine for dbdeck.
//
// This file registers the SQLite engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/dbdeck/pkg/engines/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

func init() {
	engine.Register(core.TypeSQLite, func(cfg core.ConnectionConfig, logger *slog.Logger) engine.Engine {
		return New(cfg, logger)
	})
}
