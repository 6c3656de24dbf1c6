// Package masking implements the pluggable value-masking strategies a
// privacy request's erasure rules invoke, and the per-request secret cache
// that backs strategies needing generated material (salts, keys).
package masking

import (
	"context"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// SecretRequirement describes one secret a strategy needs generated and
// cached before it can run, identified by the name it will be looked up
// under.
type SecretRequirement struct {
	Name string
	Type model.SecretType
}

// Strategy masks a single value deterministically with respect to the
// secrets in its configuration and cache. Implementations must be safe for
// concurrent use across rows of the same request.
type Strategy interface {
	// Name is the strategy's registered name, as declared on a Rule's
	// masking_strategy.
	Name() string
	// Mask masks value for the given request. A returned error is terminal
	// for the collection being masked (BackendExecution kind).
	Mask(value any, requestID string) (any, error)
	// DataTypeSupported reports whether this strategy can mask a field
	// declaring dataType. Null-rewrite supports every type.
	DataTypeSupported(dataType string) bool
	// RequiredSecrets lists the secrets the runner must generate and cache
	// before this strategy instance's Mask is called.
	RequiredSecrets() []SecretRequirement
}

// Factory builds a configured Strategy instance from a rule's
// masking_strategy configuration map.
type Factory func(config map[string]any, secrets SecretCache) (Strategy, error)

// SecretCache is the subset of the secret cache a Strategy needs: lookup by
// name for the request it is currently masking. The concrete cache
// implementation lives alongside the registry below.
type SecretCache interface {
	Get(requestID, strategyName, secretName string) (model.MaskingSecret, bool)
	// Require looks up a secret the same way Get does, but returns a
	// BackendExecution-kind error instead of ok=false on a miss. The
	// runner always generates and stores every RequiredSecrets entry
	// before the first row is masked, so a miss here means the cache was
	// never populated for this request, not an expected absence - the
	// masking pipeline fails the collection rather than mask with a
	// degraded, unsalted digest.
	Require(requestID, strategyName, secretName string) (model.MaskingSecret, error)
}

// SecretStore is the fuller contract the runner depends on: everything a
// Strategy needs (SecretCache) plus the ability to generate and write the
// secrets a request's erasure rules require before masking starts.
type SecretStore interface {
	SecretCache
	Put(ctx context.Context, requestID, strategyName, secretName string, secret model.MaskingSecret) error
}
