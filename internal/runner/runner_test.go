package runner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/connector"
	"github.com/ethyca-go/privacyrun/internal/connector/memtest"
	"github.com/ethyca-go/privacyrun/internal/masking"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/repository"
	"github.com/ethyca-go/privacyrun/internal/resultstore"
	"github.com/ethyca-go/privacyrun/internal/runner"
	"github.com/ethyca-go/privacyrun/internal/webhook"
)

// buildCustomerOrdersDataset returns a small but multi-collection dataset
// (customer <- orders <- order_items) rooted on an email identity, enough
// to exercise the runner's access and erasure phases across dependent
// nodes without needing a full eleven-collection fixture.
func buildCustomerOrdersDataset(registry *model.ConverterRegistry) model.Dataset {
	customer := model.Collection{
		Name: "customer",
		Fields: []model.Field{
			model.Field{Name: "id", DataType: "integer", PrimaryKey: true}.WithConverterRegistry(registry),
			model.Field{Name: "email", DataType: "string", IdentityTag: "email", DataCategories: []string{"user.provided.identifiable.contact"}}.WithConverterRegistry(registry),
			model.Field{Name: "name", DataType: "string", DataCategories: []string{"user.provided.identifiable.name"}}.WithConverterRegistry(registry),
		},
	}
	mustBuild(&customer)

	orders := model.Collection{
		Name: "orders",
		Fields: []model.Field{
			model.Field{Name: "id", DataType: "integer", PrimaryKey: true}.WithConverterRegistry(registry),
			model.Field{
				Name:     "customer_id",
				DataType: "integer",
				References: []model.FieldReference{{
					Target:    model.ReferenceTarget{Dataset: "demo", Collection: "customer", FieldPath: model.NewFieldPath("id")},
					Direction: model.DirectionIn,
				}},
			}.WithConverterRegistry(registry),
			model.Field{Name: "total_cents", DataType: "integer", DataCategories: []string{"system.operations"}}.WithConverterRegistry(registry),
		},
	}
	mustBuild(&orders)

	orderItems := model.Collection{
		Name: "order_items",
		Fields: []model.Field{
			model.Field{Name: "id", DataType: "integer", PrimaryKey: true}.WithConverterRegistry(registry),
			model.Field{
				Name:     "order_id",
				DataType: "integer",
				References: []model.FieldReference{{
					Target:    model.ReferenceTarget{Dataset: "demo", Collection: "orders", FieldPath: model.NewFieldPath("id")},
					Direction: model.DirectionIn,
				}},
			}.WithConverterRegistry(registry),
			model.Field{Name: "sku", DataType: "string", DataCategories: []string{"system.operations"}}.WithConverterRegistry(registry),
		},
	}
	mustBuild(&orderItems)

	return model.Dataset{
		FidesKey:      "demo",
		Name:          "demo",
		ConnectionRef: "demo-db",
		Collections:   []model.Collection{customer, orders, orderItems},
	}
}

func mustBuild(c *model.Collection) {
	if err := c.Build(); err != nil {
		panic(err)
	}
}

func seedConnector(strategies *masking.Registry, access connector.AccessMode) *memtest.Connector {
	return memtest.New("demo-db", access, strategies, map[string][]connector.Row{
		"customer": {
			{"id": 1, "email": "customer-1@example.com", "name": "Alice"},
			{"id": 2, "email": "customer-2@example.com", "name": "Bob"},
		},
		"orders": {
			{"id": 100, "customer_id": 1, "total_cents": 2500},
			{"id": 101, "customer_id": 2, "total_cents": 900},
		},
		"order_items": {
			{"id": 1000, "order_id": 100, "sku": "WIDGET-1"},
			{"id": 1001, "order_id": 101, "sku": "WIDGET-2"},
		},
	})
}

func buildHarness(t *testing.T, access connector.AccessMode, policy model.Policy) (*runner.Runner, repository.PrivacyRequestRepository, *memtest.Connector) {
	t.Helper()

	registry := model.NewConverterRegistry()
	dataset := buildCustomerOrdersDataset(registry)

	repo := repository.NewInMemory()
	repo.PutDataset(dataset)
	repo.PutPolicy(policy)

	secrets := masking.NewMemCache()
	strategies := masking.NewRegistry(secrets, zap.NewNop())
	conn := seedConnector(strategies, access)

	connectors := connector.NewRegistry()
	connectors.Register("demo-db", conn)

	results := resultstore.NewMemStore()
	webhooks := webhook.NewRunner(noopTransport{}, 0, zap.NewNop())

	r := runner.New(repo, repo, repo, connectors, strategies, secrets, results, webhooks, nil, nil, zap.NewNop())
	return r, repo, conn
}

type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, connectionRef string, payload webhook.Payload) ([]byte, error) {
	return []byte(`{}`), nil
}

// scenario 4: an access request over a dependent three-collection dataset
// stores a non-empty entry for every reachable collection, and the
// customer row's email matches the submitted identity.
func TestRunner_AccessRequest(t *testing.T) {
	policy := model.Policy{Key: "access-only", Rules: []model.Rule{
		{Key: "access-all", Action: model.ActionAccess, TargetDataCategories: []string{"user.provided"}},
	}}
	r, repo, _ := buildHarness(t, connector.AccessRead, policy)

	req := model.PrivacyRequest{ID: "req-1", PolicyKey: "access-only", Status: model.StatusPending, Identity: model.Identity{"email": "customer-1@example.com"}}
	require.NoError(t, repo.SaveRequest(context.Background(), req))

	err := r.Run(context.Background(), "req-1")
	require.NoError(t, err)

	final, err := repo.GetRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, final.Status)
	assert.NotNil(t, final.FinishedProcessingAt)

	all, err := r.Results.AllForRequest(context.Background(), "req-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	customerRows := all[model.CollectionAddress{Dataset: "demo", Collection: "customer"}]
	require.Len(t, customerRows, 1)
	assert.Equal(t, "customer-1@example.com", customerRows[0]["email"])
}

// scenario 5: an erasure request targeting user.provided.identifiable.contact
// nulls the matched customer's email but leaves name and other customers
// untouched.
func TestRunner_ErasureRequest_MasksTargetedCategoryOnly(t *testing.T) {
	policy := model.Policy{Key: "erase-contact", Rules: []model.Rule{
		{Key: "access-all", Action: model.ActionAccess, TargetDataCategories: []string{"user.provided"}},
		{
			Key:                  "erase-contact",
			Action:               model.ActionErasure,
			TargetDataCategories: []string{"user.provided.identifiable.contact"},
			MaskingStrategy:      &model.MaskingStrategyConfig{Name: masking.StrategyNameNullRewrite},
		},
	}}
	r, repo, conn := buildHarness(t, connector.AccessReadWrite, policy)

	req := model.PrivacyRequest{ID: "req-2", PolicyKey: "erase-contact", Status: model.StatusPending, Identity: model.Identity{"email": "customer-2@example.com"}}
	require.NoError(t, repo.SaveRequest(context.Background(), req))

	err := r.Run(context.Background(), "req-2")
	require.NoError(t, err)

	final, err := repo.GetRequest(context.Background(), "req-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusComplete, final.Status)

	rows := conn.Snapshot("customer")
	for _, row := range rows {
		if row["id"] == 2 {
			assert.Nil(t, row["email"])
			assert.Equal(t, "Bob", row["name"])
		}
		if row["id"] == 1 {
			assert.Equal(t, "customer-1@example.com", row["email"])
		}
	}
}

// scenario 6: erasure against a read-only connector logs the exact denial
// message and leaves the backend untouched.
func TestRunner_ErasureRequest_ReadOnlyConnectorDenied(t *testing.T) {
	policy := model.Policy{Key: "erase-contact", Rules: []model.Rule{
		{Key: "access-all", Action: model.ActionAccess, TargetDataCategories: []string{"user.provided"}},
		{
			Key:                  "erase-contact",
			Action:               model.ActionErasure,
			TargetDataCategories: []string{"user.provided.identifiable.contact"},
			MaskingStrategy:      &model.MaskingStrategyConfig{Name: masking.StrategyNameNullRewrite},
		},
	}}
	r, repo, conn := buildHarness(t, connector.AccessRead, policy)

	req := model.PrivacyRequest{ID: "req-3", PolicyKey: "erase-contact", Status: model.StatusPending, Identity: model.Identity{"email": "customer-1@example.com"}}
	require.NoError(t, repo.SaveRequest(context.Background(), req))

	err := r.Run(context.Background(), "req-3")
	require.NoError(t, err)

	logs, err := repo.ListExecutionLogs(context.Background(), "req-3")
	require.NoError(t, err)

	var sawDenied bool
	for _, l := range logs {
		if l.Action == model.ActionErasure && l.Status == model.ExecutionLogError {
			assert.Equal(t, connector.WriteAccessDeniedMessage, l.Message)
			sawDenied = true
		}
	}
	assert.True(t, sawDenied, "expected at least one erasure execution log reporting write access denial")

	rows := conn.Snapshot("customer")
	for _, row := range rows {
		if row["id"] == 1 {
			assert.Equal(t, "customer-1@example.com", row["email"])
		}
	}

	final, err := repo.GetRequest(context.Background(), "req-3")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, final.Status)
}

// scenario 7: a pre-execution webhook that halts leaves the request paused,
// with finished_processing_at unset.
func TestRunner_PreWebhookHalts_PausesRequest(t *testing.T) {
	policy := model.Policy{
		Key: "with-halting-webhook",
		Rules: []model.Rule{
			{Key: "access-all", Action: model.ActionAccess, TargetDataCategories: []string{"user.provided"}},
		},
		PreWebhooks: []model.Webhook{
			{Key: "verify-identity", Name: "verify-identity", ConnectionRef: "verify-svc", Direction: model.DirectionTwoWay, Order: 0},
		},
	}
	r, repo, _ := buildHarness(t, connector.AccessRead, policy)
	r.Webhooks = webhook.NewRunner(haltingTransport{}, 0, zap.NewNop())

	req := model.PrivacyRequest{ID: "req-4", PolicyKey: "with-halting-webhook", Status: model.StatusPending, Identity: model.Identity{"email": "customer-1@example.com"}}
	require.NoError(t, repo.SaveRequest(context.Background(), req))

	err := r.Run(context.Background(), "req-4")
	require.NoError(t, err)

	final, err := repo.GetRequest(context.Background(), "req-4")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, final.Status)
	assert.Nil(t, final.FinishedProcessingAt)
	assert.Equal(t, "verify-identity", final.PausedAtWebhook)
}

type haltingTransport struct{}

func (haltingTransport) Send(ctx context.Context, connectionRef string, payload webhook.Payload) ([]byte, error) {
	return []byte(`{"halt": true}`), nil
}

// scenario 8: a pre-execution webhook transport failure is terminal error,
// with finished_processing_at set.
func TestRunner_PreWebhookTransportFailure_TerminalError(t *testing.T) {
	policy := model.Policy{
		Key: "with-failing-webhook",
		Rules: []model.Rule{
			{Key: "access-all", Action: model.ActionAccess, TargetDataCategories: []string{"user.provided"}},
		},
		PreWebhooks: []model.Webhook{
			{Key: "verify-identity", Name: "verify-identity", ConnectionRef: "verify-svc", Direction: model.DirectionOneWay, Order: 0},
		},
	}
	r, repo, _ := buildHarness(t, connector.AccessRead, policy)
	r.Webhooks = webhook.NewRunner(failingTransport{}, 0, zap.NewNop())

	req := model.PrivacyRequest{ID: "req-5", PolicyKey: "with-failing-webhook", Status: model.StatusPending, Identity: model.Identity{"email": "customer-1@example.com"}}
	require.NoError(t, repo.SaveRequest(context.Background(), req))

	err := r.Run(context.Background(), "req-5")
	require.Error(t, err)

	final, err := repo.GetRequest(context.Background(), "req-5")
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, final.Status)
	assert.NotNil(t, final.FinishedProcessingAt)
}

type failingTransport struct{}

func (failingTransport) Send(ctx context.Context, connectionRef string, payload webhook.Payload) ([]byte, error) {
	return nil, assert.AnError
}
