// Package resultstore persists the rows a privacy-request runner retrieves
// from each collection, keyed by request and collection address, so a
// paused-and-resumed run never re-queries a node it already visited.
package resultstore

import (
	"context"
	"fmt"

	"github.com/ethyca-go/privacyrun/internal/model"
)

// Row is one retrieved record, keyed by field string path. Defined again
// here (rather than imported from internal/connector) so this package has
// no dependency on the connector abstraction - a result store only ever
// moves opaque row maps, never executes anything.
type Row map[string]any

// Key formats the result-store key one node's access-request rows are
// stored under:
// EN_{request_id}__access_request__{dataset_key}:{collection_name}.
func Key(requestID string, addr model.CollectionAddress) string {
	return fmt.Sprintf("EN_%s__access_request__%s", requestID, addr.String())
}

// Store is the result-store contract the runner depends on: write a node's
// retrieved rows once, and read them back (by itself, to feed dependents,
// or by the final upload step). Encryption of stored rows, when the owning
// PrivacyRequest carries an EncryptionKey, is the store boundary's
// responsibility, not the runner's or the connector's.
type Store interface {
	// Put writes addr's rows for requestID, replacing any prior write.
	// encryptionKey is nil when the request carries none.
	Put(ctx context.Context, requestID string, addr model.CollectionAddress, rows []Row, encryptionKey []byte) error
	// Get reads back a prior Put. ok is false if nothing was ever stored
	// for this (requestID, addr) pair.
	Get(ctx context.Context, requestID string, addr model.CollectionAddress, encryptionKey []byte) (rows []Row, ok bool, err error)
	// AllForRequest returns every collection's rows stored for requestID,
	// keyed by CollectionAddress, for the final upload step.
	AllForRequest(ctx context.Context, requestID string, encryptionKey []byte) (map[model.CollectionAddress][]Row, error)
	// Delete removes every entry stored for requestID. Callers invoke this
	// once a request's results have been uploaded and its retention window
	// has passed. MemStore keeps entries until Delete; RedisStore also
	// expires them once its TTL, counted from each Put, runs out.
	Delete(ctx context.Context, requestID string) error
}
