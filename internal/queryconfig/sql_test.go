package queryconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/queryconfig"
)

// buildOrdersNode returns the queryconfig.Node for "orders", a child
// collection fed one query field (customer_id) from an identity-rooted
// "customer" collection, plus the root-level Node for "customer" itself.
func buildOrdersNode(t *testing.T) (customerNode, ordersNode queryconfig.Node) {
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
		model.Field{Name: "total_cents", DataType: "integer"}.WithConverterRegistry(registry),
	}}
	require.NoError(t, orders.Build())

	catalog := []model.Dataset{{FidesKey: "demo", Name: "demo", Collections: []model.Collection{customer, orders}}}
	g, err := datagraph.BuildGraph(catalog, []string{"email"})
	require.NoError(t, err)

	custGraphNode, ok := g.Node(model.CollectionAddress{Dataset: "demo", Collection: "customer"})
	require.True(t, ok)
	ordersGraphNode, ok := g.Node(model.CollectionAddress{Dataset: "demo", Collection: "orders"})
	require.True(t, ok)

	return queryconfig.Node{Graph: custGraphNode}, queryconfig.Node{Graph: ordersGraphNode}
}

func TestSQLQueryConfig_GenerateQuery_SingleValue(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {1}})
	require.True(t, ok)
	assert.Equal(t, "SELECT customer_id,id,total_cents FROM orders WHERE customer_id = :customer_id", stmt.Text)
	assert.Equal(t, map[string]any{"customer_id": 1}, stmt.Params)
}

func TestSQLQueryConfig_GenerateQuery_NoQueryableData(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	// "total_cents" is not a query field path (no incoming edge targets it),
	// so there is nothing to filter on.
	_, ok := cfg.GenerateQuery(map[string][]any{"total_cents": {500}})
	assert.False(t, ok)
}

func TestSQLQueryConfig_GenerateQuery_MultiValue_GenericTupleBinding(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {1, 2, 1}})
	require.True(t, ok)
	assert.Equal(t, "SELECT customer_id,id,total_cents FROM orders WHERE customer_id IN :customer_id", stmt.Text)
	assert.Equal(t, map[string]any{"customer_id": []any{1, 2}}, stmt.Params)
}

// SQLServer cannot bind a tuple to a single IN placeholder: every value gets
// its own named parameter, expanded into the clause's operand list.
func TestSQLQueryConfig_GenerateQuery_SQLServerExpandsINPerValue(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.SQLServerDialect{}}

	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {10, 20, 30}})
	require.True(t, ok)
	assert.Equal(t,
		"SELECT customer_id,id,total_cents FROM orders WHERE customer_id IN (:customer_id_in_stmt_generated_0, :customer_id_in_stmt_generated_1, :customer_id_in_stmt_generated_2)",
		stmt.Text)
	assert.Equal(t, map[string]any{
		"customer_id_in_stmt_generated_0": 10,
		"customer_id_in_stmt_generated_1": 20,
		"customer_id_in_stmt_generated_2": 30,
	}, stmt.Params)
}

func TestSQLQueryConfig_GenerateQuery_SnowflakeQuotesIdentifiers(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.SnowflakeDialect{}}

	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {1}})
	require.True(t, ok)
	assert.Equal(t, `SELECT "customer_id","id","total_cents" FROM "orders" WHERE "customer_id" = (:customer_id)`, stmt.Text)
}

func TestSQLQueryConfig_GenerateQuery_RedshiftQuotesTableName(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.RedshiftDialect{}}

	stmt, ok := cfg.GenerateQuery(map[string][]any{"customer_id": {1}})
	require.True(t, ok)
	assert.Equal(t, `SELECT customer_id,id,total_cents FROM "orders" WHERE customer_id = :customer_id`, stmt.Text)
}

func TestSQLQueryConfig_GenerateUpdateStatement(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	row := queryconfig.Row{"id": 100, "total_cents": 2500}
	stmt, ok := cfg.GenerateUpdateStatement(row, map[string]any{"total_cents": nil})
	require.True(t, ok)
	assert.Equal(t, "UPDATE orders SET total_cents = :total_cents WHERE id = :id", stmt.Text)
	assert.Equal(t, map[string]any{"total_cents": nil, "id": 100}, stmt.Params)
}

func TestSQLQueryConfig_GenerateUpdateStatement_NoPrimaryKeyData(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	row := queryconfig.Row{"total_cents": 2500}
	_, ok := cfg.GenerateUpdateStatement(row, map[string]any{"total_cents": nil})
	assert.False(t, ok)
}

func TestSQLQueryConfig_GenerateUpdateStatement_SnowflakeQuotesAssignments(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.SnowflakeDialect{}}

	row := queryconfig.Row{"id": 100, "total_cents": 2500}
	stmt, ok := cfg.GenerateUpdateStatement(row, map[string]any{"total_cents": 0})
	require.True(t, ok)
	assert.Equal(t, `UPDATE "orders" SET "total_cents" = :total_cents WHERE "id" = :id`, stmt.Text)
}

// QueryToString must not let one placeholder name that is a prefix of
// another ("id" vs "id_in_stmt_generated_0") swallow the longer name's
// value, since it scans for the longest run of placeholder characters
// before looking the name up.
func TestSQLQueryConfig_QueryToString_PrefixSafe(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	stmt := queryconfig.SQLStatement{
		Text: "SELECT * FROM orders WHERE id = :id OR id IN (:id_in_stmt_generated_0, :id_in_stmt_generated_1)",
		Params: map[string]any{
			"id":                    1,
			"id_in_stmt_generated_0": 2,
			"id_in_stmt_generated_1": 3,
		},
	}
	got := cfg.QueryToString(stmt)
	assert.Equal(t, "SELECT * FROM orders WHERE id = 1 OR id IN (2, 3)", got)
}

func TestSQLQueryConfig_QueryToString_UnknownPlaceholderLeftVerbatim(t *testing.T) {
	_, orders := buildOrdersNode(t)
	cfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}

	stmt := queryconfig.SQLStatement{Text: "WHERE x = :missing", Params: map[string]any{}}
	assert.Equal(t, "WHERE x = :missing", cfg.QueryToString(stmt))
}

// DryRunQuery renders a representative query from placeholder tokens alone,
// with no real collected data supplied.
func TestSQLQueryConfig_DryRunQuery(t *testing.T) {
	customer, orders := buildOrdersNode(t)

	// customer's only query field path is fed directly by the root (the
	// submitted identity), so it gets a single placeholder token and the
	// single-value "=" branch.
	customerCfg := queryconfig.SQLQueryConfig{Node: customer, Dialect: queryconfig.GenericDialect{}}
	customerText, ok := customerCfg.DryRunQuery()
	require.True(t, ok)
	assert.Contains(t, customerText, "SELECT email,id FROM customer WHERE email = ")

	// customer_id is fed by a non-root collection, so displayQueryData hands
	// it two distinct placeholder tokens and the dialect renders its
	// multi-value branch (IN), not the single-value "=" branch.
	ordersCfg := queryconfig.SQLQueryConfig{Node: orders, Dialect: queryconfig.GenericDialect{}}
	ordersText, ok := ordersCfg.DryRunQuery()
	require.True(t, ok)
	assert.Contains(t, ordersText, "SELECT customer_id,id,total_cents FROM orders WHERE customer_id IN ")
}
