package masking

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// StrategyNameHash is the registered name of the hash masking strategy.
const StrategyNameHash = "hash"

const saltSecretName = "salt"

// hashStrategy masks a value by appending a generated salt and hex-encoding
// the digest, per the algorithm declared in its configuration (default
// sha256).
type hashStrategy struct {
	algorithm string
	newHash   func() hash.Hash
	secrets   SecretCache
	logger    *zap.Logger
}

// NewHashStrategy builds the hash strategy from a rule's configuration. The
// "algorithm" key selects sha256 (default) or sha512; any other value is
// rejected so a misconfigured policy fails fast at setup rather than
// producing silently-wrong digests.
func NewHashStrategy(config map[string]any, secrets SecretCache, logger *zap.Logger) (Strategy, error) {
	algorithm, _ := config["algorithm"].(string)
	if algorithm == "" {
		algorithm = "sha256"
	}

	var newHash func() hash.Hash
	switch algorithm {
	case "sha256":
		newHash = sha256.New
	case "sha512":
		newHash = sha512.New
	default:
		return nil, fmt.Errorf("masking: hash strategy does not support algorithm %q", algorithm)
	}

	return &hashStrategy{algorithm: algorithm, newHash: newHash, secrets: secrets, logger: logger}, nil
}

func (s *hashStrategy) Name() string { return StrategyNameHash }

func (s *hashStrategy) DataTypeSupported(dataType string) bool {
	switch dataType {
	case "string", "integer", "datetime":
		return true
	default:
		return false
	}
}

func (s *hashStrategy) RequiredSecrets() []SecretRequirement {
	return []SecretRequirement{{Name: saltSecretName, Type: model.SecretTypeString}}
}

// Mask hex-encodes digest(value || salt). A missing salt fails the
// collection being masked rather than degrading to an unsalted digest: the
// runner is expected to have generated and cached every required secret
// before masking starts, so a miss here means that step never happened.
func (s *hashStrategy) Mask(value any, requestID string) (any, error) {
	secret, err := s.secrets.Require(requestID, s.Name(), saltSecretName)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("masking secret not found for hash strategy",
				zap.String("request_id", requestID), zap.String("strategy", s.Name()))
		}
		return nil, err
	}

	h := s.newHash()
	h.Write([]byte(fmt.Sprintf("%v", value)))
	h.Write([]byte(secret.Secret))
	return hex.EncodeToString(h.Sum(nil)), nil
}
