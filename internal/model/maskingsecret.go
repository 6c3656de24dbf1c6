package model

import "fmt"

// SecretType distinguishes the shape of a generated masking secret, mirroring
// the secret kinds a masking strategy can request from the secret cache.
type SecretType string

const (
	SecretTypeString SecretType = "string"
	SecretTypeBytes  SecretType = "bytes"
)

// MaskingSecret is one named secret value generated for a single privacy
// request and masking strategy, cached so every row masked by that strategy
// during that request reuses the same value (e.g. a salt).
type MaskingSecret struct {
	Secret          string
	MaskingStrategy string
	SecretType      SecretType
}

// SecretCacheKey formats the cache key a masking secret is stored and looked
// up under: one secret per (request, strategy, secret name, type) tuple.
func SecretCacheKey(requestID, strategy, secretName string, secretType SecretType) string {
	return fmt.Sprintf("SECRET__%s__%s__%s__%s", requestID, strategy, secretName, secretType)
}
