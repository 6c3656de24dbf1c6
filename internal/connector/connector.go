// Package connector defines the capability surface every concrete backend
// driver implements, and the registry the runner resolves them through.
// Network transport for any real backend is out of scope here: concrete
// drivers live outside this module's committed dependency surface and are
// wired in by the embedding application.
package connector

import (
	"context"

	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/model"
	"github.com/ethyca-go/privacyrun/internal/rerrors"
)

// AccessMode is the write permission granted to a connection.
type AccessMode string

const (
	AccessRead      AccessMode = "read"
	AccessReadWrite AccessMode = "read_write"
)

// TestResult is the outcome of a connector's test_connection call.
type TestResult string

const (
	TestSucceeded TestResult = "succeeded"
	TestFailed    TestResult = "failed"
	TestSkipped   TestResult = "skipped"
)

// Row is one retrieved or masked record, keyed by field string path.
type Row map[string]any

// Connector is the capability set a concrete backend driver exposes to the
// runner: connection health, retrieval, and masking.
type Connector interface {
	// Key identifies this connector's backend kind (e.g. "postgres",
	// "mongodb"), used for registry lookups and logging.
	Key() string
	// Access reports this connection's write permission.
	Access() AccessMode
	TestConnection(ctx context.Context) (TestResult, error)
	// Retrieve executes node's retrieval query against the backend with
	// the given input values, returning the matched rows.
	Retrieve(ctx context.Context, node *datagraph.Node, inputData map[string][]any, policy model.Policy) ([]Row, error)
	// Mask applies rows' computed masked values to the backend, returning
	// the number of rows affected. A read-only connector must return
	// ErrWriteAccessDenied without mutating anything.
	Mask(ctx context.Context, node *datagraph.Node, rows []Row, policy model.Policy, request model.PrivacyRequest) (int, error)
}

// WriteAccessDeniedMessage is the exact message a read-only connector's
// Mask call must report.
const WriteAccessDeniedMessage = "No values were erased since this connection has not been given write access"

// ErrWriteAccessDenied is returned by Mask on a read-only connector.
var ErrWriteAccessDenied = rerrors.New(rerrors.KindAccessDenied, WriteAccessDeniedMessage)
