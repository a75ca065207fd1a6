// Package providers provides a factory for creating model gateways and the
// wrapper that bounds outbound calls.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"filechat/config"
	"filechat/internal/core"
)

// Builder creates a gateway from configuration
type Builder func(cfg config.ProviderConfig) (core.Gateway, error)

var (
	registryMu sync.RWMutex
	// registry holds all registered gateway builders
	registry = make(map[string]Builder)
)

// Register allows provider packages to register themselves.
// This should be called from init() functions in provider packages.
func Register(name string, builder Builder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = builder
}

// Create instantiates the gateway named by cfg.Name
func Create(cfg config.ProviderConfig) (core.Gateway, error) {
	registryMu.RLock()
	builder, ok := registry[cfg.Name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider: %q (registered: %v)", cfg.Name, ListRegistered())
	}
	return builder(cfg)
}

// ListRegistered returns the sorted names of all registered providers
func ListRegistered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
