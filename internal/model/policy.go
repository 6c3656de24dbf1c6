package model

// ActionType is the kind of operation a Rule performs.
type ActionType string

const (
	ActionAccess  ActionType = "access"
	ActionErasure ActionType = "erasure"
)

// MaskingStrategyConfig names a masking strategy and its configuration, as
// attached to an erasure Rule.
type MaskingStrategyConfig struct {
	Name          string
	Configuration map[string]any
}

// Rule is one entry in a Policy: a target action over a set of data
// categories, with an optional masking strategy for erasure actions.
type Rule struct {
	Key                  string
	Action               ActionType
	TargetDataCategories []string
	MaskingStrategy       *MaskingStrategyConfig
}

// TargetsField reports whether any of the rule's target categories is a
// dot-prefix of (or equal to) any category on field - the prefix-match
// semantics an erasure rule uses to target fields.
func (r Rule) TargetsField(f Field) bool {
	for _, ruleCat := range r.TargetDataCategories {
		if f.HasCategoryPrefix(ruleCat) {
			return true
		}
	}
	return false
}

// Policy groups the rules that govern one privacy request, plus the
// pre/post-execution webhooks the runner interleaves around the traversal.
type Policy struct {
	Key         string
	Rules       []Rule
	PreWebhooks  []Webhook
	PostWebhooks []Webhook
}

// ErasureRules returns the subset of rules whose action is erasure.
func (p Policy) ErasureRules() []Rule {
	var out []Rule
	for _, r := range p.Rules {
		if r.Action == ActionErasure {
			out = append(out, r)
		}
	}
	return out
}

// HasErasureRules reports whether the policy contains at least one erasure
// rule (the runner uses this to decide whether to run the masking phase).
func (p Policy) HasErasureRules() bool {
	for _, r := range p.Rules {
		if r.Action == ActionErasure {
			return true
		}
	}
	return false
}
