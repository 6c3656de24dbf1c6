package masking

// StrategyNameNullRewrite is the registered name of the null-rewrite
// masking strategy.
const StrategyNameNullRewrite = "null_rewrite"

// nullRewriteStrategy always masks to nil. It requires no secrets, supports
// every data type, and bypasses truncation (handled by the caller checking
// this strategy's Name before truncating).
type nullRewriteStrategy struct{}

// NewNullRewriteStrategy builds the null-rewrite strategy. Its
// configuration map is unused; it accepts and ignores whatever is given so
// a policy author can still pass an empty configuration block.
func NewNullRewriteStrategy(config map[string]any, secrets SecretCache) (Strategy, error) {
	return nullRewriteStrategy{}, nil
}

func (nullRewriteStrategy) Name() string { return StrategyNameNullRewrite }

func (nullRewriteStrategy) DataTypeSupported(dataType string) bool { return true }

func (nullRewriteStrategy) RequiredSecrets() []SecretRequirement { return nil }

func (nullRewriteStrategy) Mask(value any, requestID string) (any, error) {
	return nil, nil
}
