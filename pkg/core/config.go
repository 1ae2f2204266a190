package core

import "strings"

// Engine type names.
const (
	TypeMySQL    = "mysql"
	TypePostgres = "postgres"
	TypeMSSQL    = "mssql"
	TypeSQLite   = "sqlite"
	TypeMongoDB  = "mongodb"
)

// MemoryPath is the sqlite path for an in-memory database.
const MemoryPath = ":memory:"

// DefaultSSHPort is used when a tunnel does not name one.
const DefaultSSHPort = 22

// ConnectionConfig describes how to reach one backend.
type ConnectionConfig struct {
	Name             string            `koanf:"name" json:"name" yaml:"name"`
	Type             string            `koanf:"type" json:"type" yaml:"type"`
	Host             string            `koanf:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port             int               `koanf:"port" json:"port,omitempty" yaml:"port,omitempty"`
	Database         string            `koanf:"database" json:"database,omitempty" yaml:"database,omitempty"`
	Path             string            `koanf:"path" json:"path,omitempty" yaml:"path,omitempty"`
	Username         string            `koanf:"username" json:"username,omitempty" yaml:"username,omitempty"`
	Password         string            `koanf:"password" json:"-" yaml:"-"`
	ConnectionString string            `koanf:"connection_string" json:"-" yaml:"-"`
	Schema           string            `koanf:"schema" json:"schema,omitempty" yaml:"schema,omitempty"`
	Options          map[string]string `koanf:"options" json:"options,omitempty" yaml:"options,omitempty"`
	Params           map[string]any    `koanf:"params" json:"params,omitempty" yaml:"params,omitempty"`
	Tunnel           *TunnelConfig     `koanf:"tunnel" json:"tunnel,omitempty" yaml:"tunnel,omitempty"`
}

// TunnelConfig describes an SSH port-forward to RemoteHost:RemotePort.
// Either Password or PrivateKeyPath (plus optional Passphrase) authenticates.
type TunnelConfig struct {
	Host           string `koanf:"host" json:"host" yaml:"host"`
	Port           int    `koanf:"port" json:"port" yaml:"port"`
	Username       string `koanf:"username" json:"username" yaml:"username"`
	Password       string `koanf:"password" json:"-" yaml:"-"`
	PrivateKeyPath string `koanf:"private_key_path" json:"privateKeyPath,omitempty" yaml:"private_key_path,omitempty"`
	Passphrase     string `koanf:"passphrase" json:"-" yaml:"-"`
	KnownHostsPath string `koanf:"known_hosts_path" json:"knownHostsPath,omitempty" yaml:"known_hosts_path,omitempty"`
	RemoteHost     string `koanf:"remote_host" json:"remoteHost" yaml:"remote_host"`
	RemotePort     int    `koanf:"remote_port" json:"remotePort" yaml:"remote_port"`
}

// DefaultPort returns the conventional port for an engine type, or 0.
func DefaultPort(engineType string) int {
	switch strings.ToLower(engineType) {
	case TypeMySQL:
		return 3306
	case TypePostgres:
		return 5432
	case TypeMSSQL:
		return 1433
	case TypeMongoDB:
		return 27017
	default:
		return 0
	}
}

// ApplyConnectionDefaults fills unset fields with per-type defaults.
func ApplyConnectionDefaults(c *ConnectionConfig) {
	if c == nil {
		return
	}
	c.Type = strings.ToLower(c.Type)
	host := c.Host

	if c.Type == TypeSQLite {
		if c.Path == "" {
			c.Path = c.Database
		}
		if c.Path == "" {
			c.Path = MemoryPath
		}
	} else {
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = DefaultPort(c.Type)
		}
	}

	if t := c.Tunnel; t != nil {
		if t.Port == 0 {
			t.Port = DefaultSSHPort
		}
		// The configured host is resolved from the bastion, not locally.
		if t.RemoteHost == "" {
			t.RemoteHost = host
		}
		if t.RemoteHost == "" {
			t.RemoteHost = "127.0.0.1"
		}
		if t.RemotePort == 0 {
			t.RemotePort = c.Port
		}
	}
}

// Option returns an option value or def when unset.
func (c ConnectionConfig) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}
