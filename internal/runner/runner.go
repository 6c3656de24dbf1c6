// Package runner implements the privacy-request state machine: webhook →
// traversal → access → erasure → webhook → upload. It
// owns no persistent state of its own - every transition is written
// through repository.PrivacyRequestRepository before Run returns. Running a
// crashed or paused request again skips every access-phase node whose rows
// are already in the result store; the erasure phase and the
// post-execution webhooks run again in full.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ethyca-go/privacyrun/internal/connector"
	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/masking"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/repository"
	"github.com/ethyca-go/privacyrun/internal/resultstore"
	"github.com/ethyca-go/privacyrun/internal/traversal"
	"github.com/ethyca-go/privacyrun/internal/webhook"
)

// Runner drives one PrivacyRequest at a time through to a terminal or
// paused state. It holds no per-request mutable state, so many Runner
// values (or one Runner called concurrently for different request ids)
// can share the same resultstore.Store and masking.SecretStore safely -
// those collaborators own their own concurrency.
type Runner struct {
	Requests   repository.PrivacyRequestRepository
	Policies   repository.PolicyRepository
	Datasets   repository.DatasetRepository
	Connectors *connector.Registry
	Strategies *masking.Registry
	Secrets    masking.SecretStore
	Results    resultstore.Store
	Webhooks   *webhook.Runner
	Uploader   Uploader
	Audit      *AuditPublisher
	Logger     *zap.Logger

	// now is swapped out in tests for a deterministic clock.
	now func() time.Time
}

// New builds a Runner. uploader defaults to NoopUploader and audit may be
// nil (no audit events are published) if the caller has no NATS
// connection.
func New(
	requests repository.PrivacyRequestRepository,
	policies repository.PolicyRepository,
	datasets repository.DatasetRepository,
	connectors *connector.Registry,
	strategies *masking.Registry,
	secrets masking.SecretStore,
	results resultstore.Store,
	webhooks *webhook.Runner,
	uploader Uploader,
	audit *AuditPublisher,
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if uploader == nil {
		uploader = NewNoopUploader(logger)
	}
	return &Runner{
		Requests:   requests,
		Policies:   policies,
		Datasets:   datasets,
		Connectors: connectors,
		Strategies: strategies,
		Secrets:    secrets,
		Results:    results,
		Webhooks:   webhooks,
		Uploader:   uploader,
		Audit:      audit,
		Logger:     logger.Named("runner"),
		now:        time.Now,
	}
}

// Run drives requestID forward: from pending through to complete or error,
// or from paused back through to complete, error, or another pause. It is
// the single entry point for both a fresh run and a resume - §4.6 step 1's
// "idempotent on retry" transition is what makes both paths the same call.
func (r *Runner) Run(ctx context.Context, requestID string) error {
	req, err := r.Requests.GetRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("runner: loading request %s: %w", requestID, err)
	}

	if !req.Advance(model.StatusInProcessing, r.now()) && req.Status != model.StatusInProcessing {
		return fmt.Errorf("runner: request %s cannot be run from status %s", requestID, req.Status)
	}
	if err := r.Requests.SaveRequest(ctx, req); err != nil {
		return fmt.Errorf("runner: saving request %s: %w", requestID, err)
	}

	policy, err := r.Policies.GetPolicy(ctx, req.PolicyKey)
	if err != nil {
		return r.fail(ctx, req, fmt.Errorf("runner: loading policy %s: %w", req.PolicyKey, err))
	}

	pre := r.Webhooks.Run(ctx, req.ID, policy.PreWebhooks, req.PausedAtWebhook)
	req.Identity = mergeIdentity(req.Identity, pre.DerivedIdentity)
	if !pre.Proceed {
		if pre.Paused {
			return r.pause(ctx, req, pre.PausedAfter)
		}
		return r.fail(ctx, req, &webhook.ClientError{WebhookKey: "pre_execution", Cause: fmt.Errorf("pre-execution webhooks did not complete")})
	}

	datasets, err := r.Datasets.ListDatasets(ctx)
	if err != nil {
		return r.fail(ctx, req, fmt.Errorf("runner: listing datasets: %w", err))
	}

	graph, err := datagraph.BuildGraph(datasets, identityKinds(req.Identity))
	if err != nil {
		return r.fail(ctx, req, err)
	}

	plan := traversal.Build(graph)
	for _, nt := range plan.NotTraversable {
		r.Logger.Warn("collection is not reachable from the identity root",
			zap.String("collection", nt.Address.String()), zap.String("request_id", req.ID))
	}

	hadFailure := r.runAccessPhase(ctx, req, graph, plan, policy)

	if policy.HasErasureRules() {
		if err := r.generateSecrets(ctx, req.ID, policy); err != nil {
			r.Logger.Error("failed to generate masking secrets", zap.String("request_id", req.ID), zap.Error(err))
			hadFailure = true
		} else if r.runErasurePhase(ctx, req, graph, plan, policy) {
			hadFailure = true
		}
	}

	post := r.Webhooks.Run(ctx, req.ID, policy.PostWebhooks, "")
	req.Identity = mergeIdentity(req.Identity, post.DerivedIdentity)
	if !post.Proceed {
		if post.Paused {
			return r.pause(ctx, req, post.PausedAfter)
		}
		return r.fail(ctx, req, &webhook.ClientError{WebhookKey: "post_execution", Cause: fmt.Errorf("post-execution webhooks did not complete")})
	}

	results, err := r.Results.AllForRequest(ctx, req.ID, req.EncryptionKey)
	if err != nil {
		hadFailure = true
		r.Logger.Error("failed to assemble results for upload", zap.String("request_id", req.ID), zap.Error(err))
	} else if err := r.Uploader.Upload(ctx, req.ID, results); err != nil {
		hadFailure = true
		r.Logger.Error("failed to upload results", zap.String("request_id", req.ID), zap.Error(err))
	}

	if hadFailure {
		req.Advance(model.StatusError, r.now())
	} else {
		req.Advance(model.StatusComplete, r.now())
	}
	if err := r.Requests.SaveRequest(ctx, req); err != nil {
		return fmt.Errorf("runner: saving final request state: %w", err)
	}
	return nil
}

// runAccessPhase walks plan's reachable nodes in order, retrieving each
// one's rows and storing them. It returns true iff any node failed.
func (r *Runner) runAccessPhase(ctx context.Context, req model.PrivacyRequest, graph *datagraph.Graph, plan *traversal.Plan, policy model.Policy) bool {
	hadFailure := false
	for _, addr := range plan.Order {
		node, ok := graph.Node(addr)
		if !ok {
			continue
		}

		// Rows already stored by an earlier run of this request are reused,
		// not re-queried.
		if _, stored, err := r.Results.Get(ctx, req.ID, addr, req.EncryptionKey); err == nil && stored {
			continue
		}

		conn, err := r.Connectors.Get(node.Dataset.ConnectionRef)
		if err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionAccess, err)
			hadFailure = true
			continue
		}

		inputs, err := r.nodeInputs(ctx, req, node)
		if err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionAccess, err)
			hadFailure = true
			continue
		}

		rows, err := conn.Retrieve(ctx, node, inputs, policy)
		if err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionAccess, err)
			hadFailure = true
			continue
		}

		if err := r.Results.Put(ctx, req.ID, addr, toStoreRows(rows), req.EncryptionKey); err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionAccess, err)
			hadFailure = true
			continue
		}

		r.appendLog(ctx, model.ExecutionLog{
			PrivacyRequestID:  req.ID,
			CollectionAddress: addr,
			Action:            model.ActionAccess,
			Status:            model.ExecutionLogComplete,
			RecordsAffected:   len(rows),
			Timestamp:         r.now(),
		})
	}
	return hadFailure
}

// runErasurePhase revisits every node that produced access-request rows and
// masks the fields the policy's erasure rules target. It returns true iff
// any node failed (including a read-only connector refusing the mask).
func (r *Runner) runErasurePhase(ctx context.Context, req model.PrivacyRequest, graph *datagraph.Graph, plan *traversal.Plan, policy model.Policy) bool {
	hadFailure := false
	for _, addr := range plan.Order {
		node, ok := graph.Node(addr)
		if !ok {
			continue
		}

		rows, ok, err := r.Results.Get(ctx, req.ID, addr, req.EncryptionKey)
		if err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionErasure, err)
			hadFailure = true
			continue
		}
		if !ok || len(rows) == 0 {
			continue
		}

		conn, err := r.Connectors.Get(node.Dataset.ConnectionRef)
		if err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionErasure, err)
			hadFailure = true
			continue
		}

		count, err := conn.Mask(ctx, node, toConnectorRows(rows), policy, req)
		if err != nil {
			r.logNode(ctx, req.ID, addr, model.ActionErasure, err)
			hadFailure = true
			continue
		}

		r.appendLog(ctx, model.ExecutionLog{
			PrivacyRequestID:  req.ID,
			CollectionAddress: addr,
			Action:            model.ActionErasure,
			Status:            model.ExecutionLogComplete,
			RecordsAffected:   count,
			Timestamp:         r.now(),
		})
	}
	return hadFailure
}

// nodeInputs gathers node's filter input values from its incoming edges:
// identity values straight from the request for edges out of the root, and
// previously stored rows of upstream collections for every other edge.
// Reading from the result store (rather than an in-memory map built during
// this call to Run) is what makes a resumed run's downstream nodes see the
// same inputs a completed run already computed.
func (r *Runner) nodeInputs(ctx context.Context, req model.PrivacyRequest, node *datagraph.Node) (map[string][]any, error) {
	inputs := map[string][]any{}
	for _, edge := range node.InEdges {
		toKey := edge.ToField.StringPath()

		if edge.From == model.RootCollectionAddress {
			if v, ok := req.Identity[edge.FromField.LastLevel()]; ok && v != "" {
				inputs[toKey] = append(inputs[toKey], v)
			}
			continue
		}

		rows, ok, err := r.Results.Get(ctx, req.ID, edge.From, req.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("reading upstream results from %s: %w", edge.From.String(), err)
		}
		if !ok {
			continue
		}
		fromKey := edge.FromField.StringPath()
		for _, row := range rows {
			if v, present := row[fromKey]; present && v != nil {
				inputs[toKey] = append(inputs[toKey], v)
			}
		}
	}
	return inputs, nil
}

// generateSecrets pre-generates and caches every secret the policy's
// erasure strategies require, once per request, before any node is masked -
// a strategy instance never generates its own secret at mask time.
func (r *Runner) generateSecrets(ctx context.Context, requestID string, policy model.Policy) error {
	for _, rule := range policy.ErasureRules() {
		if rule.MaskingStrategy == nil {
			continue
		}
		strategy, err := r.Strategies.Get(rule.MaskingStrategy.Name, rule.MaskingStrategy.Configuration)
		if err != nil {
			return fmt.Errorf("resolving strategy %s: %w", rule.MaskingStrategy.Name, err)
		}

		for _, need := range strategy.RequiredSecrets() {
			if _, ok := r.Secrets.Get(requestID, rule.MaskingStrategy.Name, need.Name); ok {
				continue
			}
			byteLength := 16
			if need.Type == model.SecretTypeBytes {
				byteLength = 32
			}
			value, err := masking.GenerateSecretString(byteLength)
			if err != nil {
				return fmt.Errorf("generating secret %s for strategy %s: %w", need.Name, rule.MaskingStrategy.Name, err)
			}
			secret := model.MaskingSecret{Secret: value, MaskingStrategy: rule.MaskingStrategy.Name, SecretType: need.Type}
			if err := r.Secrets.Put(ctx, requestID, rule.MaskingStrategy.Name, need.Name, secret); err != nil {
				return fmt.Errorf("caching secret %s for strategy %s: %w", need.Name, rule.MaskingStrategy.Name, err)
			}
		}
	}
	return nil
}

func (r *Runner) logNode(ctx context.Context, requestID string, addr model.CollectionAddress, action model.ActionType, err error) {
	r.Logger.Warn("node failed", zap.String("request_id", requestID), zap.String("collection", addr.String()),
		zap.String("action", string(action)), zap.Error(err))
	r.appendLog(ctx, model.ExecutionLog{
		PrivacyRequestID:  requestID,
		CollectionAddress: addr,
		Action:            action,
		Status:            model.ExecutionLogError,
		Message:           err.Error(),
		Timestamp:         r.now(),
	})
}

func (r *Runner) appendLog(ctx context.Context, log model.ExecutionLog) {
	if err := r.Requests.AppendExecutionLog(ctx, log); err != nil {
		r.Logger.Error("failed to append execution log", zap.Error(err))
	}
	if r.Audit != nil {
		r.Audit.Publish(ctx, log)
	}
}

func (r *Runner) pause(ctx context.Context, req model.PrivacyRequest, pausedAfter string) error {
	req.PausedAtWebhook = pausedAfter
	req.Advance(model.StatusPaused, r.now())
	return r.Requests.SaveRequest(ctx, req)
}

func (r *Runner) fail(ctx context.Context, req model.PrivacyRequest, cause error) error {
	req.Advance(model.StatusError, r.now())
	if err := r.Requests.SaveRequest(ctx, req); err != nil {
		r.Logger.Error("failed to save failed request", zap.Error(err))
	}
	return cause
}

func mergeIdentity(base, derived model.Identity) model.Identity {
	out := model.Identity{}
	for k, v := range base {
		out[k] = v
	}
	for k, v := range derived {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

func identityKinds(identity model.Identity) []string {
	out := make([]string, 0, len(identity))
	for k := range identity {
		out = append(out, k)
	}
	return out
}

func toStoreRows(rows []connector.Row) []resultstore.Row {
	out := make([]resultstore.Row, len(rows))
	for i, row := range rows {
		out[i] = resultstore.Row(row)
	}
	return out
}

func toConnectorRows(rows []resultstore.Row) []connector.Row {
	out := make([]connector.Row, len(rows))
	for i, row := range rows {
		out[i] = connector.Row(row)
	}
	return out
}
