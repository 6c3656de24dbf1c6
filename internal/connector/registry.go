package connector

import (
	"fmt"
	"sync"
)

// Registry resolves a connection's backend key to a live Connector
// instance. The runner looks up one connector per dataset's ConnectionRef
// before querying any of its collections.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: map[string]Connector{}}
}

// Register adds or replaces the connector bound to connectionRef.
func (r *Registry) Register(connectionRef string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[connectionRef] = c
}

// Get resolves connectionRef to its Connector.
func (r *Registry) Get(connectionRef string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[connectionRef]
	if !ok {
		return nil, fmt.Errorf("connector: no connection registered under key %q", connectionRef)
	}
	return c, nil
}
