package masking_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/masking"
	"github.com/ethyca-go/privacyrun/internal/model"
)

func seedSalt(t *testing.T, cache *masking.MemCache, requestID, strategyName, salt string) {
	t.Helper()
	require.NoError(t, cache.Put(context.Background(), requestID, strategyName, "salt", model.MaskingSecret{
		Secret: salt, MaskingStrategy: strategyName, SecretType: model.SecretTypeString,
	}))
}

// scenario 1: hash SHA-256 with salt "adobo" on input "monkey".
func TestHashStrategy_SHA256(t *testing.T) {
	cache := masking.NewMemCache()
	seedSalt(t, cache, "req-1", masking.StrategyNameHash, "adobo")

	strategy, err := masking.NewHashStrategy(map[string]any{"algorithm": "sha256"}, cache, zap.NewNop())
	require.NoError(t, err)

	out, err := strategy.Mask("monkey", "req-1")
	require.NoError(t, err)
	assert.Equal(t, "1c015e801323afa54bde5e4d510809e6b5f14ad9b9961c48cbd7143106b6e596", out)
}

// scenario 2: hash SHA-512 with salt "adobo" on input "monkey".
func TestHashStrategy_SHA512(t *testing.T) {
	cache := masking.NewMemCache()
	seedSalt(t, cache, "req-2", masking.StrategyNameHash, "adobo")

	strategy, err := masking.NewHashStrategy(map[string]any{"algorithm": "sha512"}, cache, zap.NewNop())
	require.NoError(t, err)

	out, err := strategy.Mask("monkey", "req-2")
	require.NoError(t, err)
	assert.Equal(t, "527ca44f5c95400d161c503e6ddad7be01941ec9e7a03c2201338a16ba8a36bb765a430bd6b276a590661154f3f743a3a91efecd056645b4ea13b4b8cf39e8e3", out)
}

func TestHashStrategy_Mask_Deterministic(t *testing.T) {
	cache := masking.NewMemCache()
	seedSalt(t, cache, "req-3", masking.StrategyNameHash, "pepper")

	strategy, err := masking.NewHashStrategy(nil, cache, zap.NewNop())
	require.NoError(t, err)

	a, err := strategy.Mask("same-value", "req-3")
	require.NoError(t, err)
	b, err := strategy.Mask("same-value", "req-3")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashStrategy_Mask_MissingSecretFails(t *testing.T) {
	cache := masking.NewMemCache()
	strategy, err := masking.NewHashStrategy(nil, cache, zap.NewNop())
	require.NoError(t, err)

	_, err = strategy.Mask("monkey", "req-never-seeded")
	require.Error(t, err)

	var requireErr *masking.RequireError
	assert.ErrorAs(t, err, &requireErr)
}

func TestHashStrategy_UnsupportedAlgorithm(t *testing.T) {
	cache := masking.NewMemCache()
	_, err := masking.NewHashStrategy(map[string]any{"algorithm": "md5"}, cache, zap.NewNop())
	require.Error(t, err)
}

// scenario 3: null-rewrite on any input returns null regardless of a
// configured length override.
func TestNullRewriteStrategy_AlwaysNull(t *testing.T) {
	strategy, err := masking.NewNullRewriteStrategy(map[string]any{"length": 4}, masking.NewMemCache())
	require.NoError(t, err)

	out, err := strategy.Mask("anything at all", "req-4")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, strategy.RequiredSecrets())
}

func TestNullRewriteStrategy_SupportsEveryDataType(t *testing.T) {
	strategy, err := masking.NewNullRewriteStrategy(nil, masking.NewMemCache())
	require.NoError(t, err)

	assert.True(t, strategy.DataTypeSupported("string"))
	assert.True(t, strategy.DataTypeSupported("integer"))
	assert.True(t, strategy.DataTypeSupported("anything"))
}
