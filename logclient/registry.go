package logclient

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/maxpert/logcursor/cfg"
	"github.com/rs/zerolog/log"
)

// ErrUnknownBackend is returned for a backend type nobody registered
var ErrUnknownBackend = errors.New("unknown log backend")

// BackendFactory creates a Backend from the configuration
type BackendFactory func(*cfg.Configuration) (Backend, error)

var (
	backendFactories = make(map[cfg.BackendType]BackendFactory)
	factoryMu        sync.RWMutex
)

// RegisterBackend registers a backend factory under a type name.
// Registering the same name twice replaces the earlier factory.
func RegisterBackend(name cfg.BackendType, factory BackendFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	backendFactories[name] = factory
}

// RegisteredBackends lists registered backend names
func RegisteredBackends() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// NewBackend creates the backend selected by config.Log.Backend
func NewBackend(config *cfg.Configuration) (Backend, error) {
	factoryMu.RLock()
	factory, exists := backendFactories[config.Log.Backend]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, config.Log.Backend)
	}

	b, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", config.Log.Backend, err)
	}

	log.Debug().Str("backend", string(config.Log.Backend)).Msg("Log backend created")
	return b, nil
}
