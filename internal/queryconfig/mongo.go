package queryconfig

import (
	"fmt"
	"sort"
)

// MongoStatement is a (filter, projection) pair, the same shape a
// pymongo-style find(filter, projection) call takes.
type MongoStatement struct {
	Filter     map[string]any
	Projection map[string]any
}

// MongoUpdateStatement is a (pk filter, $set document) pair.
type MongoUpdateStatement struct {
	Filter map[string]any
	Set    map[string]any
}

// DocumentQueryConfig generates Mongo-shaped filter/projection documents; it
// needs no dialect parameter because document stores have no identifier
// quoting concerns and support nested projection paths natively.
type DocumentQueryConfig struct {
	Node Node
}

// GenerateQuery builds a filter that ORs together each query field path's
// predicate (single value or "$in"), and a projection selecting every field
// on the collection.
func (c DocumentQueryConfig) GenerateQuery(inputData map[string][]any) (MongoStatement, bool) {
	if len(inputData) == 0 {
		return MongoStatement{}, false
	}
	filtered := c.Node.TypedFilteredValues(inputData)
	if len(filtered) == 0 {
		return MongoStatement{}, false
	}

	projection := map[string]any{}
	for path := range c.Node.FieldMap() {
		projection[path] = 1
	}

	pairs := map[string]any{}
	for path, values := range filtered {
		if len(values) == 1 {
			pairs[path] = values[0]
		} else if len(values) > 1 {
			pairs[path] = map[string]any{"$in": values}
		}
	}

	return MongoStatement{Filter: orTransform(pairs), Projection: projection}, true
}

// GenerateUpdateStatement builds a (primary-key filter, $set document) pair
// masking row's targeted fields.
func (c DocumentQueryConfig) GenerateUpdateStatement(row Row, updateValueMap map[string]any) (MongoUpdateStatement, bool) {
	pkFilter := map[string]any{}
	for path, field := range c.Node.PrimaryKeyFieldPaths() {
		if v, ok := row[path]; ok {
			if cast := field.Cast(v); cast != nil {
				pkFilter[path] = cast
			}
		}
	}

	if len(pkFilter) == 0 || len(updateValueMap) == 0 {
		return MongoUpdateStatement{}, false
	}
	return MongoUpdateStatement{Filter: pkFilter, Set: updateValueMap}, true
}

// QueryToString renders a find() call for logging/dry-run display.
func (c DocumentQueryConfig) QueryToString(stmt MongoStatement) string {
	return "db." + c.Node.Graph.Address.Dataset + "." + c.Node.Graph.Address.Collection +
		".find(" + formatDoc(stmt.Filter) + ", " + formatDoc(stmt.Projection) + ")"
}

// DryRunQuery renders a representative find() using placeholder tokens.
func (c DocumentQueryConfig) DryRunQuery() (string, bool) {
	display := displayQueryData(c.Node)
	stmt, ok := c.GenerateQuery(display)
	if !ok {
		return "", false
	}
	return c.QueryToString(stmt), true
}

// orTransform turns {A:1, B:2} into {"$or": [{A:1}, {B:2}]} once there is
// more than one key; a single-key filter is left flat.
func orTransform(pairs map[string]any) map[string]any {
	if len(pairs) < 2 {
		return pairs
	}
	var keys []string
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var or []any
	for _, k := range keys {
		or = append(or, map[string]any{k: pairs[k]})
	}
	return map[string]any{"$or": or}
}

func formatDoc(doc map[string]any) string {
	var keys []string
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += k + ": "
		switch v := doc[k].(type) {
		case string:
			out += "'" + v + "'"
		default:
			out += sprintAny(v)
		}
	}
	return out + "}"
}

func sprintAny(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%v", v)
}
