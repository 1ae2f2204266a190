// Package mysql provides the MySQL and MariaDB engine for dbdeck.
//
// This file registers the MySQL engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/dbdeck/pkg/engines/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

func init() {
	engine.Register(core.TypeMySQL, func(cfg core.ConnectionConfig, logger *slog.Logger) engine.Engine {
		return New(cfg, logger)
	})
}
