// Package mssql provides the Microsoft SQL Server engine for dbdeck.
//
// This file registers the SQL Server engine with the engine registry.
// Import this package with a blank identifier to register the engine:
//
//	import _ "github.com/leapstack-labs/dbdeck/pkg/engines/mssql"
package mssql

import (
	"log/slog"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

func init() {
	engine.Register(core.TypeMSSQL, func(cfg core.ConnectionConfig, logger *slog.Logger) engine.Engine {
		return New(cfg, logger)
	})
}
