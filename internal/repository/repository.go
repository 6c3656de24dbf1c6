// Package repository defines the persistence boundary treated as an
// external collaborator: durable storage of dataset definitions, policies,
// and privacy requests (with their append-only execution logs) behind a
// relational store. This package commits to interfaces only - the concrete
// backend (a SQL database, transactions, migrations) is deliberately out of
// scope. InMemory (inmemory.go) lets this module's own tests drive the
// runner without a real database, and cmd/privacyrun seeds one from its
// bootstrap file.
package repository

import (
	"context"
	"fmt"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// DatasetRepository resolves the dataset catalog a privacy request's graph
// is built from.
type DatasetRepository interface {
	ListDatasets(ctx context.Context) ([]model.Dataset, error)
	GetDataset(ctx context.Context, fidesKey string) (model.Dataset, error)
}

// PolicyRepository resolves the Policy a privacy request was submitted
// under.
type PolicyRepository interface {
	GetPolicy(ctx context.Context, key string) (model.Policy, error)
}

// PrivacyRequestRepository owns a PrivacyRequest's lifecycle record and its
// append-only ExecutionLog trail.
type PrivacyRequestRepository interface {
	GetRequest(ctx context.Context, id string) (model.PrivacyRequest, error)
	SaveRequest(ctx context.Context, request model.PrivacyRequest) error
	AppendExecutionLog(ctx context.Context, log model.ExecutionLog) error
	ListExecutionLogs(ctx context.Context, requestID string) ([]model.ExecutionLog, error)
}

// NotFoundError reports a lookup against a key the repository has no record
// for.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("repository: no %s found for key %q", e.Kind, e.Key)
}
