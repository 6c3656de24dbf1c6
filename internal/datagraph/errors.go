package datagraph

import (
	"fmt"

	"github.com/ethyca-go/privacyrun/internal/rerrors"
)

// ReferenceError reports a Field reference that named a dataset, collection,
// or field path the graph builder could not resolve against the catalog it
// was given. It corresponds to the GraphReference error kind in the error
// taxonomy.
type ReferenceError struct {
	Dataset    string
	Collection string
	Field      string
	Detail     string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("graph reference error in %s.%s.%s: %s", e.Dataset, e.Collection, e.Field, e.Detail)
}

func (e *ReferenceError) ErrorKind() rerrors.Kind { return rerrors.KindGraphReference }

func newReferenceError(dataset, collection, field, detail string) *ReferenceError {
	return &ReferenceError{Dataset: dataset, Collection: collection, Field: field, Detail: detail}
}
