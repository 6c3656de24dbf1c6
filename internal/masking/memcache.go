package masking

import (
	"context"
	"sync"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// MemCache is an in-process SecretStore used by this module's own tests to
// drive the masking pipeline and runner without Redis.
type MemCache struct {
	mu      sync.RWMutex
	secrets map[string]model.MaskingSecret
}

// NewMemCache returns an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{secrets: map[string]model.MaskingSecret{}}
}

func (c *MemCache) Put(ctx context.Context, requestID, strategyName, secretName string, secret model.MaskingSecret) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[cacheKey(requestID, strategyName, secretName)] = secret
	return nil
}

func (c *MemCache) Get(requestID, strategyName, secretName string) (model.MaskingSecret, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.secrets[cacheKey(requestID, strategyName, secretName)]
	return s, ok
}

func (c *MemCache) Require(requestID, strategyName, secretName string) (model.MaskingSecret, error) {
	s, ok := c.Get(requestID, strategyName, secretName)
	if !ok {
		return model.MaskingSecret{}, &RequireError{Key: cacheKey(requestID, strategyName, secretName)}
	}
	return s, nil
}
