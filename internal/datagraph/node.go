package datagraph

import "github.com/ethyca-go/privacyrun/internal/model"

// Node is one collection's presence in the traversal graph, together with
// the edges that enter and leave it.
type Node struct {
	Address    model.CollectionAddress
	Dataset    *model.Dataset
	Collection *model.Collection

	// InEdges are edges whose To is this node's address: these identify
	// which upstream collections must be queried, and which of their
	// fields, before this node can be queried.
	InEdges []Edge
	// OutEdges are edges whose From is this node's address.
	OutEdges []Edge
}

// IsRoot reports whether this node is the synthetic identity root.
func (n Node) IsRoot() bool {
	return n.Address == model.RootCollectionAddress
}
