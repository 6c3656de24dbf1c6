package queryconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/queryconfig"
)

// buildReturnsNode returns the queryconfig.Node for "returns", a collection
// fed two distinct query field paths (customer_ref, order_ref) from two
// different upstream collections, enough to exercise the $or-across-keys
// filter shape that a single query field path never triggers.
func buildReturnsNode(t *testing.T) queryconfig.Node {
	t.Helper()
	registry := model.NewConverterRegistry()

	customer := model.Collection{Name: "customer", Fields: []model.Field{
		model.Field{Name: "id", DataType: "integer", PrimaryKey: true}.WithConverterRegistry(registry),
		model.Field{Name: "email", DataType: "string", IdentityTag: "email"}.WithConverterRegistry(registry),
	}}
	require.NoError(t, customer.Build())

	orders := model.Collection{Name: "orders", Fields: []model.Field{
		model.Field{Name: "id", DataType: "integer", PrimaryKey: true}.WithConverterRegistry(registry),
		model.Field{Name: "customer_id", DataType: "integer", References: []model.FieldReference{{
			Target:    model.ReferenceTarget{Dataset: "demo", Collection: "customer", FieldPath: model.NewFieldPath("id")},
			Direction: model.DirectionIn,
		}}}.WithConverterRegistry(registry),
	}}
	require.NoError(t, orders.Build())

	returns := model.Collection{Name: "returns", Fields: []model.Field{
		model.Field{Name: "id", DataType: "integer", PrimaryKey: true}.WithConverterRegistry(registry),
		model.Field{Name: "customer_ref", DataType: "integer", References: []model.FieldReference{{
			Target:    model.ReferenceTarget{Dataset: "demo", Collection: "customer", FieldPath: model.NewFieldPath("id")},
			Direction: model.DirectionIn,
		}}}.WithConverterRegistry(registry),
		model.Field{Name: "order_ref", DataType: "integer", References: []model.FieldReference{{
			Target:    model.ReferenceTarget{Dataset: "demo", Collection: "orders", FieldPath: model.NewFieldPath("id")},
			Direction: model.DirectionIn,
		}}}.WithConverterRegistry(registry),
		model.Field{Name: "reason", DataType: "string"}.WithConverterRegistry(registry),
	}}
	require.NoError(t, returns.Build())

	catalog := []model.Dataset{{FidesKey: "demo", Name: "demo", Collections: []model.Collection{customer, orders, returns}}}
	g, err := datagraph.BuildGraph(catalog, []string{"email"})
	require.NoError(t, err)

	graphNode, ok := g.Node(model.CollectionAddress{Dataset: "demo", Collection: "returns"})
	require.True(t, ok)
	return queryconfig.Node{Graph: graphNode}
}

func TestDocumentQueryConfig_GenerateQuery_EmptyInput(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}
	_, ok := cfg.GenerateQuery(map[string][]any{})
	assert.False(t, ok)
}

func TestDocumentQueryConfig_GenerateQuery_NoQueryableData(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}
	// "reason" is not fed by any incoming edge, so it never becomes a filter.
	_, ok := cfg.GenerateQuery(map[string][]any{"reason": {"damaged"}})
	assert.False(t, ok)
}

func TestDocumentQueryConfig_GenerateQuery_SingleKeySingleValue(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_ref": {5}})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"customer_ref": 5}, stmt.Filter)
	assert.Equal(t, map[string]any{
		"id": 1, "customer_ref": 1, "order_ref": 1, "reason": 1,
	}, stmt.Projection)
}

func TestDocumentQueryConfig_GenerateQuery_SingleKeyMultiValueUsesIn(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	// Unlike the SQL query config, the Mongo filter does not dedupe repeated
	// values; it passes TypedFilteredValues' cast slice straight through.
	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_ref": {5, 6, 5}})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"customer_ref": map[string]any{"$in": []any{5, 6, 5}}}, stmt.Filter)
}

// When more than one query field path has data, the filter predicates
// across keys are OR'd together rather than ANDed, matching a record that
// satisfies any one of the upstream links.
func TestDocumentQueryConfig_GenerateQuery_MultiKeyFilterIsOred(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	stmt, ok := cfg.GenerateQuery(map[string][]any{
		"customer_ref": {5},
		"order_ref":    {9},
	})
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"$or": []any{
			map[string]any{"customer_ref": 5},
			map[string]any{"order_ref": 9},
		},
	}, stmt.Filter)
}

func TestDocumentQueryConfig_GenerateUpdateStatement(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	row := queryconfig.Row{"id": 42, "reason": "damaged"}
	stmt, ok := cfg.GenerateUpdateStatement(row, map[string]any{"reason": "MASKED"})
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": 42}, stmt.Filter)
	assert.Equal(t, map[string]any{"reason": "MASKED"}, stmt.Set)
}

func TestDocumentQueryConfig_GenerateUpdateStatement_NoPrimaryKeyData(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	row := queryconfig.Row{"reason": "damaged"}
	_, ok := cfg.GenerateUpdateStatement(row, map[string]any{"reason": "MASKED"})
	assert.False(t, ok)
}

func TestDocumentQueryConfig_GenerateUpdateStatement_NoUpdateValues(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	row := queryconfig.Row{"id": 42}
	_, ok := cfg.GenerateUpdateStatement(row, map[string]any{})
	assert.False(t, ok)
}

func TestDocumentQueryConfig_QueryToString(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	stmt := queryconfig.MongoStatement{
		Filter:     map[string]any{"customer_ref": 5},
		Projection: map[string]any{"id": 1, "reason": 1},
	}
	got := cfg.QueryToString(stmt)
	assert.Equal(t, "db.demo.returns.find({customer_ref: 5}, {id: 1, reason: 1})", got)
}

// formatDoc single-quotes string values distinctly from numeric/other ones.
func TestDocumentQueryConfig_QueryToString_QuotesStrings(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	stmt := queryconfig.MongoStatement{
		Filter:     map[string]any{"reason": "damaged"},
		Projection: map[string]any{"id": 1},
	}
	got := cfg.QueryToString(stmt)
	assert.Equal(t, "db.demo.returns.find({reason: 'damaged'}, {id: 1})", got)
}

// DryRunQuery renders a representative find() using placeholder tokens,
// without requiring real collected data.
func TestDocumentQueryConfig_DryRunQuery(t *testing.T) {
	cfg := queryconfig.DocumentQueryConfig{Node: buildReturnsNode(t)}

	text, ok := cfg.DryRunQuery()
	require.True(t, ok)
	assert.Contains(t, text, "db.demo.returns.find(")
}
