package masking

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry resolves a strategy name plus configuration into a configured
// Strategy instance. It is populated once at startup with the built-in
// strategies and is safe for concurrent reads thereafter.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]func(config map[string]any) (Strategy, error)
}

// NewRegistry returns a Registry pre-seeded with the hash and null_rewrite
// strategies, both backed by secrets.
func NewRegistry(secrets SecretCache, logger *zap.Logger) *Registry {
	r := &Registry{builders: map[string]func(config map[string]any) (Strategy, error){}}
	r.Register(StrategyNameHash, func(config map[string]any) (Strategy, error) {
		return NewHashStrategy(config, secrets, logger)
	})
	r.Register(StrategyNameNullRewrite, func(config map[string]any) (Strategy, error) {
		return NewNullRewriteStrategy(config, secrets)
	})
	return r
}

// Register adds or replaces the builder for name.
func (r *Registry) Register(name string, builder func(config map[string]any) (Strategy, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Get builds a Strategy instance for name with the given configuration.
func (r *Registry) Get(name string, config map[string]any) (Strategy, error) {
	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("masking: no strategy registered under name %q", name)
	}
	return builder(config)
}
