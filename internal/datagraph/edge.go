// Package datagraph builds the in-memory traversal graph over a catalog of
// datasets: a synthetic root node carrying the submitted identity, plus one
// node per collection, connected by edges derived from identity tags and
// field references. It is rebuilt fresh for every privacy request; nothing
// here is persisted.
package datagraph

import "github.com/ethyca-go/privacyrun/internal/model"

// Edge is a directed dependency from From to To: a traversal must have
// already visited From (and extracted FromField's values) before it can
// query To using ToField as a filter.
type Edge struct {
	From      model.CollectionAddress
	FromField model.FieldPath
	To        model.CollectionAddress
	ToField   model.FieldPath
}

// String renders an edge as "from.field -> to.field".
func (e Edge) String() string {
	return e.From.String() + "." + e.FromField.StringPath() + " -> " + e.To.String() + "." + e.ToField.StringPath()
}
