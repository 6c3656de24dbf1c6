package repository

import (
	"context"
	"sync"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// InMemory implements DatasetRepository, PolicyRepository, and
// PrivacyRequestRepository over plain Go maps, guarded by a single mutex.
// It stands in for the relational store the runner treats as an external
// collaborator, simplified to an in-process map since no concrete backend
// is wired by this module.
type InMemory struct {
	mu       sync.RWMutex
	datasets map[string]model.Dataset
	policies map[string]model.Policy
	requests map[string]model.PrivacyRequest
	logs     map[string][]model.ExecutionLog
}

// NewInMemory returns an empty InMemory repository.
func NewInMemory() *InMemory {
	return &InMemory{
		datasets: map[string]model.Dataset{},
		policies: map[string]model.Policy{},
		requests: map[string]model.PrivacyRequest{},
		logs:     map[string][]model.ExecutionLog{},
	}
}

// PutDataset seeds or replaces a dataset definition. Dataset/schema
// discovery is out of scope; this is how a caller installs annotated
// definitions it already has.
func (m *InMemory) PutDataset(ds model.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasets[ds.FidesKey] = ds
}

// PutPolicy seeds or replaces a policy.
func (m *InMemory) PutPolicy(p model.Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.Key] = p
}

func (m *InMemory) ListDatasets(ctx context.Context) ([]model.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Dataset, 0, len(m.datasets))
	for _, ds := range m.datasets {
		out = append(out, ds)
	}
	return out, nil
}

func (m *InMemory) GetDataset(ctx context.Context, fidesKey string) (model.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.datasets[fidesKey]
	if !ok {
		return model.Dataset{}, &NotFoundError{Kind: "dataset", Key: fidesKey}
	}
	return ds, nil
}

func (m *InMemory) GetPolicy(ctx context.Context, key string) (model.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[key]
	if !ok {
		return model.Policy{}, &NotFoundError{Kind: "policy", Key: key}
	}
	return p, nil
}

func (m *InMemory) GetRequest(ctx context.Context, id string) (model.PrivacyRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return model.PrivacyRequest{}, &NotFoundError{Kind: "privacy_request", Key: id}
	}
	return r, nil
}

func (m *InMemory) SaveRequest(ctx context.Context, request model.PrivacyRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[request.ID] = request
	return nil
}

func (m *InMemory) AppendExecutionLog(ctx context.Context, log model.ExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[log.PrivacyRequestID] = append(m.logs[log.PrivacyRequestID], log)
	return nil
}

func (m *InMemory) ListExecutionLogs(ctx context.Context, requestID string) ([]model.ExecutionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ExecutionLog, len(m.logs[requestID]))
	copy(out, m.logs[requestID])
	return out, nil
}
