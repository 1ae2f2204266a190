package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/dbdeck/pkg/core"
)

// Factory builds an unconnected engine for a connection.
type Factory func(cfg core.ConnectionConfig, logger *slog.Logger) Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds an engine factory to the registry.
// Called by engine implementations in their init() functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// Get retrieves an engine factory by name.
func Get(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[strings.ToLower(name)]
	return f, ok
}

// New creates an unconnected engine instance based on cfg.Type.
// The logger parameter is passed to the engine constructor (nil uses discard logger).
func New(cfg core.ConnectionConfig, logger *slog.Logger) (Engine, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("engine type not specified")
	}

	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownEngineError{
			Type:      cfg.Type,
			Available: ListEngines(),
		}
	}
	return factory(cfg, logger), nil
}

// ListEngines returns all registered engine names (sorted).
func ListEngines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an engine type is registered.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// UnknownEngineError is returned when an unknown engine type is requested.
type UnknownEngineError struct {
	Type      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine type %q\nAvailable engines: %v\nHint: Check connections.<name>.type in dbdeck.yaml", e.Type, e.Available)
}
