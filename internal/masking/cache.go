package masking

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/rerrors"
)

// RequireError is the BackendExecution-kind error SecretCache.Require
// returns on a cache miss.
type RequireError struct {
	Key string
}

func (e *RequireError) Error() string {
	return fmt.Sprintf("masking: required secret %q was not found in the cache", e.Key)
}

func (e *RequireError) ErrorKind() rerrors.Kind { return rerrors.KindBackendExecution }

// RedisCache is the two-tier (Ristretto L1, Redis L2) secret cache used by
// the masking pipeline: hot reads never leave the process, and every
// instance sharing one Redis database sees secrets generated by any other.
type RedisCache struct {
	l1     *ristretto.Cache[string, model.MaskingSecret]
	l2     *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache builds a RedisCache. ttl bounds how long a generated secret
// survives; it should comfortably outlast the longest privacy request run
// it will be used in.
func NewRedisCache(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	if ttl == 0 {
		ttl = time.Hour
	}
	l1, err := ristretto.NewCache(&ristretto.Config[string, model.MaskingSecret]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("masking: failed to create L1 secret cache: %w", err)
	}
	return &RedisCache{l1: l1, l2: redisClient, ttl: ttl, logger: logger.Named("masking.cache")}, nil
}

func cacheKey(requestID, strategyName, secretName string) string {
	return model.SecretCacheKey(requestID, strategyName, secretName, model.SecretTypeString)
}

// Put stores secret under (requestID, strategyName, secretName) in both
// cache tiers.
func (c *RedisCache) Put(ctx context.Context, requestID, strategyName, secretName string, secret model.MaskingSecret) error {
	key := cacheKey(requestID, strategyName, secretName)
	c.l1.SetWithTTL(key, secret, 1, c.ttl)

	if c.l2 == nil {
		return nil
	}
	payload, err := sonic.Marshal(secret)
	if err != nil {
		return fmt.Errorf("masking: failed to encode secret for %q: %w", key, err)
	}
	if err := c.l2.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to write secret to L2 cache", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Get implements Strategy's SecretCache dependency.
func (c *RedisCache) Get(requestID, strategyName, secretName string) (model.MaskingSecret, bool) {
	key := cacheKey(requestID, strategyName, secretName)
	if secret, ok := c.l1.Get(key); ok {
		return secret, true
	}
	if c.l2 == nil {
		return model.MaskingSecret{}, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	payload, err := c.l2.Get(ctx, key).Bytes()
	if err != nil {
		return model.MaskingSecret{}, false
	}
	var secret model.MaskingSecret
	if err := sonic.Unmarshal(payload, &secret); err != nil {
		c.logger.Warn("failed to decode cached secret", zap.String("key", key), zap.Error(err))
		return model.MaskingSecret{}, false
	}
	c.l1.SetWithTTL(key, secret, 1, c.ttl)
	return secret, true
}

// Require implements the fail-fast lookup Strategy.Mask uses.
func (c *RedisCache) Require(requestID, strategyName, secretName string) (model.MaskingSecret, error) {
	secret, ok := c.Get(requestID, strategyName, secretName)
	if !ok {
		return model.MaskingSecret{}, &RequireError{Key: cacheKey(requestID, strategyName, secretName)}
	}
	return secret, nil
}

// GenerateSecretString returns a URL-safe, base64-encoded random string of
// the given byte length, suitable as an opaque masking secret.
func GenerateSecretString(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = 16
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("masking: failed to generate random secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
