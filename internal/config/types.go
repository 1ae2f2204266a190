// Package config provides layered configuration for the dbdeck CLI.
//
// Values are resolved from lowest to highest precedence: built-in defaults,
// the dbdeck.yaml (or dbdeck.yml) file, DBDECK_ environment variables, and
// finally command-line flags that were explicitly set.
package config

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// ConfigFileName is the name of the config file.
const ConfigFileName = "dbdeck.yaml"

// ConfigFileNameAlt is the alternate name of the config file.
const ConfigFileNameAlt = "dbdeck.yml"

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "DBDECK_"

// Default configuration values.
const (
	DefaultOutput  = "auto" // Auto-detect: TTY=table, non-TTY=markdown
	DefaultPerPage = 20
)

// Output formats accepted by --output.
var OutputFormats = []string{"auto", "table", "json", "csv", "yaml", "markdown"}

// Config holds all CLI configuration options.
type Config struct {
	// Connection names the entry of Connections commands operate on.
	// When empty and exactly one connection is configured, that one is used.
	Connection   string                           `koanf:"connection"`
	Verbose      bool                             `koanf:"verbose"`
	OutputFormat string                           `koanf:"output"`
	PerPage      int                              `koanf:"per_page"`
	Connections  map[string]core.ConnectionConfig `koanf:"connections"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// ConnectionNames returns the configured connection names, sorted.
func (c *Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the selected connection with per-type defaults applied.
// An explicit name overrides c.Connection.
func (c *Config) Resolve(name string) (core.ConnectionConfig, error) {
	if name == "" {
		name = c.Connection
	}
	if name == "" {
		switch len(c.Connections) {
		case 0:
			return core.ConnectionConfig{}, fmt.Errorf("no connections configured\nHint: Add a connections section to %s", ConfigFileName)
		case 1:
			name = c.ConnectionNames()[0]
		default:
			return core.ConnectionConfig{}, fmt.Errorf("multiple connections configured, choose one with --connection (available: %v)", c.ConnectionNames())
		}
	}

	conn, ok := c.Connections[name]
	if !ok {
		return core.ConnectionConfig{}, fmt.Errorf("connection %q not found (available: %v)", name, c.ConnectionNames())
	}
	conn.Name = name
	if conn.Tunnel != nil {
		t := *conn.Tunnel
		conn.Tunnel = &t
	}
	core.ApplyConnectionDefaults(&conn)
	return conn, nil
}
