package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/dbdeck/pkg/core"
	"github.com/leapstack-labs/dbdeck/pkg/engine"
)

// Validate checks if the configuration is valid.
// Connection types are checked against the engine registry.
func (c *Config) Validate() error {
	if c.OutputFormat != "" && !slices.Contains(OutputFormats, c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if c.PerPage < 0 {
		return fmt.Errorf("per_page must not be negative, got %d", c.PerPage)
	}

	var errs []error
	for _, name := range c.ConnectionNames() {
		if err := ValidateConnection(c.Connections[name]); err != nil {
			errs = append(errs, fmt.Errorf("connection %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateConnection checks a single connection descriptor.
func ValidateConnection(conn core.ConnectionConfig) error {
	if conn.Type == "" {
		return fmt.Errorf("type is required")
	}
	if !engine.IsRegistered(conn.Type) {
		return &engine.UnknownEngineError{Type: conn.Type, Available: engine.ListEngines()}
	}

	if conn.Port < 0 || conn.Port > 65535 {
		return fmt.Errorf("port %d out of range", conn.Port)
	}

	if t := conn.Tunnel; t != nil {
		if strings.EqualFold(conn.Type, core.TypeSQLite) {
			return fmt.Errorf("tunnel is not supported for %s", core.TypeSQLite)
		}
		if t.Host == "" {
			return fmt.Errorf("tunnel.host is required")
		}
		if t.Username == "" {
			return fmt.Errorf("tunnel.username is required")
		}
	}
	return nil
}
