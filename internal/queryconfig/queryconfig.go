// Package queryconfig turns a traversal node's collected input values into
// backend-specific retrieval and update statements, one dialect
// implementation per supported backend.
package queryconfig

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/masking"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// queryFieldPathCache memoizes QueryFieldPaths per graph node. A node's
// InEdges never change after datagraph.BuildGraph returns, and a fresh
// *datagraph.Node is built for every privacy request, so keying on the
// pointer itself is safe: stale entries from finished requests just age out
// of the LRU rather than ever being read back for a different graph.
var queryFieldPathCache, _ = lru.New[*datagraph.Node, map[string]bool](4096)

// Row is one record retrieved from a backend, keyed by a field's dotted
// string path.
type Row map[string]any

// Node wraps a traversal graph node with the derived lookups every dialect's
// query config needs: field map, query field paths (the ends of incoming
// edges), and rule-to-field-path targeting for erasure.
type Node struct {
	Graph *datagraph.Node
}

// FieldMap returns this node's collection fields keyed by string path.
func (n Node) FieldMap() map[string]model.Field {
	return n.Graph.Collection.FieldDict()
}

// QueryFieldPaths returns the set of field paths that are the destination of
// an incoming edge: the only fields a generated retrieval query may filter
// on, since those are the only ones with values supplied by upstream nodes.
func (n Node) QueryFieldPaths() map[string]bool {
	if cached, ok := queryFieldPathCache.Get(n.Graph); ok {
		return cached
	}
	out := make(map[string]bool, len(n.Graph.InEdges))
	for _, e := range n.Graph.InEdges {
		out[e.ToField.StringPath()] = true
	}
	queryFieldPathCache.Add(n.Graph, out)
	return out
}

// TypedFilteredValues narrows inputData (collected from upstream nodes) down
// to the keys that are both query field paths and present with data, casting
// each value through the field's DataTypeConverter and dropping any that
// cast to nil. DryRunQuery's placeholder tokens are kept without casting.
func (n Node) TypedFilteredValues(inputData map[string][]any) map[string][]any {
	queryFields := n.QueryFieldPaths()
	fieldMap := n.FieldMap()

	out := map[string][]any{}
	for key, values := range inputData {
		if !queryFields[key] {
			continue
		}
		field, ok := fieldMap[key]
		if !ok {
			continue
		}
		var cast []any
		for _, v := range values {
			if tok, isToken := v.(queryToken); isToken {
				cast = append(cast, tok)
				continue
			}
			if cv := field.Cast(v); cv != nil {
				cast = append(cast, cv)
			}
		}
		if len(cast) > 0 {
			out[key] = cast
		}
	}
	return out
}

// PrimaryKeyFieldPaths returns the string paths of this collection's
// primary-key fields, paired with the Field for casting.
func (n Node) PrimaryKeyFieldPaths() map[string]model.Field {
	out := map[string]model.Field{}
	for path, field := range n.FieldMap() {
		if field.PrimaryKey {
			out[path] = field
		}
	}
	return out
}

// RuleTargetFieldPaths maps each erasure rule to the field paths of this
// collection it targets, by data-category prefix match.
func (n Node) RuleTargetFieldPaths(policy model.Policy) map[string][]string {
	out := map[string][]string{}
	fieldPathsByCategory := n.Graph.Collection.FieldPathsByCategory()

	for _, rule := range policy.ErasureRules() {
		if len(rule.TargetDataCategories) == 0 {
			continue
		}
		var targeted []string
		for _, ruleCat := range rule.TargetDataCategories {
			for collCat, paths := range fieldPathsByCategory {
				if categoryStartsWith(collCat, ruleCat) {
					for _, p := range paths {
						targeted = append(targeted, p.StringPath())
					}
				}
			}
		}
		if len(targeted) > 0 {
			sort.Strings(targeted)
			out[rule.Key] = targeted
		}
	}
	return out
}

func categoryStartsWith(category, prefix string) bool {
	if category == prefix {
		return true
	}
	return len(category) > len(prefix) && category[:len(prefix)] == prefix && category[len(prefix)] == '.'
}

// UpdateValueMap computes the masked replacement value for every field path
// of row that an erasure rule targets. A field whose data type the chosen
// strategy does not support (or, for any strategy but null rewrite, a field
// with no declared data type) is skipped: it is left out of the map, no
// error is returned, and the skip is not logged.
func (n Node) UpdateValueMap(row Row, policy model.Policy, requestID string, strategies *masking.Registry) (map[string]any, error) {
	targets := n.RuleTargetFieldPaths(policy)
	fieldMap := n.FieldMap()
	erasureRules := map[string]model.Rule{}
	for _, r := range policy.ErasureRules() {
		erasureRules[r.Key] = r
	}

	valueMap := map[string]any{}
	for ruleKey, fieldPaths := range targets {
		rule := erasureRules[ruleKey]
		if rule.MaskingStrategy == nil {
			continue
		}
		strategy, err := strategies.Get(rule.MaskingStrategy.Name, rule.MaskingStrategy.Configuration)
		if err != nil {
			return nil, fmt.Errorf("queryconfig: %w", err)
		}
		isNullMasking := rule.MaskingStrategy.Name == masking.StrategyNameNullRewrite

		for _, path := range fieldPaths {
			field, ok := fieldMap[path]
			if !ok {
				continue
			}
			if !isNullMasking && (field.DataType == "" || !strategy.DataTypeSupported(field.DataType)) {
				continue
			}

			val, ok := row[path]
			if !ok {
				continue
			}
			masked, err := strategy.Mask(val, requestID)
			if err != nil {
				return nil, err
			}
			if !isNullMasking && field.Length > 0 {
				masked = field.Truncate(masked)
			}
			valueMap[path] = masked
		}
	}
	return valueMap, nil
}
