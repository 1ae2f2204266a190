// Package credentials resolves connection secrets that are not written in
// the config file.
//
// Secrets are looked up in a Store first (environment variables by default)
// and, when still missing and a Prompter is available, asked for
// interactively. Resolved values are only kept in the ConnectionConfig.
package credentials

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// Secret keys.
const (
	KeyPassword      = "PASSWORD"
	KeySSHPassword   = "SSH_PASSWORD"
	KeySSHPassphrase = "SSH_PASSPHRASE"
)

// DefaultEnvPrefix prefixes every environment variable EnvStore reads.
const DefaultEnvPrefix = "DBDECK"

// Store looks up a secret for a named connection.
type Store interface {
	Lookup(connection, key string) (string, bool)
}

// Prompter asks the user for a secret.
type Prompter interface {
	Prompt(label string) (string, error)
}

// EnvStore reads secrets from variables named PREFIX_<CONNECTION>_<KEY>,
// e.g. DBDECK_REPORTING_PASSWORD for the connection "reporting".
type EnvStore struct {
	Prefix    string
	LookupEnv func(string) (string, bool)
}

// NewEnvStore returns a store reading the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{Prefix: DefaultEnvPrefix, LookupEnv: os.LookupEnv}
}

// Lookup implements Store. Empty values count as unset.
func (s *EnvStore) Lookup(connection, key string) (string, bool) {
	lookup := s.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(VarName(s.Prefix, connection, key))
	return v, ok && v != ""
}

// VarName builds the environment variable name of a secret. Characters
// other than letters and digits in the connection name become underscores.
func VarName(prefix, connection, key string) string {
	name := strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, connection)

	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, name, key} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// MapStore is a fixed set of secrets keyed by connection then key.
type MapStore map[string]map[string]string

// Lookup implements Store.
func (m MapStore) Lookup(connection, key string) (string, bool) {
	v, ok := m[connection][key]
	return v, ok && v != ""
}

// Fill completes the secrets cfg needs. Store values win over prompts;
// prompter may be nil, in which case missing secrets stay empty.
func Fill(cfg *core.ConnectionConfig, store Store, prompter Prompter) error {
	resolve := func(dst *string, key, label string, ask bool) error {
		if *dst != "" {
			return nil
		}
		if store != nil {
			if v, ok := store.Lookup(cfg.Name, key); ok {
				*dst = v
				return nil
			}
		}
		if !ask || prompter == nil {
			return nil
		}
		v, err := prompter.Prompt(label)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", strings.ToLower(strings.ReplaceAll(key, "_", " ")), err)
		}
		*dst = v
		return nil
	}

	needsPassword := cfg.Type != core.TypeSQLite && cfg.ConnectionString == "" && cfg.Username != ""
	if err := resolve(&cfg.Password, KeyPassword,
		fmt.Sprintf("Password for %s@%s", cfg.Username, cfg.Name), needsPassword); err != nil {
		return err
	}

	t := cfg.Tunnel
	if t == nil {
		return nil
	}
	if err := resolve(&t.Passphrase, KeySSHPassphrase, "", false); err != nil {
		return err
	}
	needsSSHPassword := t.PrivateKeyPath == ""
	return resolve(&t.Password, KeySSHPassword,
		fmt.Sprintf("SSH password for %s@%s", t.Username, t.Host), needsSSHPassword)
}
