package datagraph

import "github.com/ethyca-go/privacyrun/internal/model"

// BuildGraph assembles the traversal graph for one run: a synthetic root
// node carrying the submitted identity kinds, one node per collection of
// every dataset in catalog, an edge from the root to every field tagged
// with one of identityKinds, and edges derived from every field reference.
//
// Four build rules:
//  1. The root node always exists, even if no field references an identity.
//  2. A root edge is added for every field whose IdentityTag is in
//     identityKinds, regardless of which dataset or collection it lives in.
//  3. A reference edge is added for every FieldReference, expanded according
//     to its Direction (in, out, or both for bidi).
//  4. A reference whose target dataset, collection, or field path cannot be
//     resolved against catalog is reported as a ReferenceError; BuildGraph
//     returns the first one it encounters rather than building a partial
//     graph.
func BuildGraph(catalog []model.Dataset, identityKinds []string) (*Graph, error) {
	g := newGraph()
	g.ensureNode(model.RootCollectionAddress, nil, nil)

	index := newCatalogIndex(catalog)

	for di := range catalog {
		ds := &catalog[di]
		for ci := range ds.Collections {
			coll := &ds.Collections[ci]
			addr := ds.Address(coll.Name)
			g.ensureNode(addr, ds, coll)
		}
	}

	identitySet := make(map[string]bool, len(identityKinds))
	for _, k := range identityKinds {
		identitySet[k] = true
	}

	for di := range catalog {
		ds := &catalog[di]
		for ci := range ds.Collections {
			coll := &ds.Collections[ci]
			addr := ds.Address(coll.Name)

			for _, f := range coll.Fields {
				if f.IdentityTag != "" && identitySet[f.IdentityTag] {
					g.addEdge(Edge{
						From:      model.RootCollectionAddress,
						FromField: model.NewFieldPath(f.IdentityTag),
						To:        addr,
						ToField:   model.NewFieldPath(f.Name),
					})
				}

				for _, ref := range f.References {
					if err := addReferenceEdges(g, index, ds.FidesKey, addr, f, ref); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return g, nil
}

func addReferenceEdges(g *Graph, index catalogIndex, sourceDataset string, sourceAddr model.CollectionAddress, f model.Field, ref model.FieldReference) error {
	targetDataset := ref.Target.Dataset
	if targetDataset == "" {
		targetDataset = sourceDataset
	}
	targetAddr := model.CollectionAddress{Dataset: targetDataset, Collection: ref.Target.Collection}

	if !index.hasField(targetAddr, ref.Target.FieldPath) {
		return newReferenceError(sourceAddr.Dataset, sourceAddr.Collection, f.Name,
			"reference target "+targetAddr.String()+"."+ref.Target.FieldPath.StringPath()+" was not found in the supplied catalog")
	}

	switch ref.Direction {
	case model.DirectionOut:
		g.addEdge(Edge{From: sourceAddr, FromField: model.NewFieldPath(f.Name), To: targetAddr, ToField: ref.Target.FieldPath})
	case model.DirectionIn:
		g.addEdge(Edge{From: targetAddr, FromField: ref.Target.FieldPath, To: sourceAddr, ToField: model.NewFieldPath(f.Name)})
	case model.DirectionBidirectional:
		g.addEdge(Edge{From: sourceAddr, FromField: model.NewFieldPath(f.Name), To: targetAddr, ToField: ref.Target.FieldPath})
		g.addEdge(Edge{From: targetAddr, FromField: ref.Target.FieldPath, To: sourceAddr, ToField: model.NewFieldPath(f.Name)})
	default:
		return newReferenceError(sourceAddr.Dataset, sourceAddr.Collection, f.Name, "unknown reference direction "+string(ref.Direction))
	}
	return nil
}

// catalogIndex supports the field-existence lookups BuildGraph needs to
// validate references, without repeatedly scanning the catalog slice.
type catalogIndex struct {
	collections map[model.CollectionAddress]*model.Collection
}

func newCatalogIndex(catalog []model.Dataset) catalogIndex {
	idx := catalogIndex{collections: make(map[model.CollectionAddress]*model.Collection)}
	for di := range catalog {
		ds := &catalog[di]
		for ci := range ds.Collections {
			coll := &ds.Collections[ci]
			idx.collections[ds.Address(coll.Name)] = coll
		}
	}
	return idx
}

func (idx catalogIndex) hasField(addr model.CollectionAddress, path model.FieldPath) bool {
	coll, ok := idx.collections[addr]
	if !ok {
		return false
	}
	if coll.FieldDict() == nil {
		// Build was not called on this collection; fall back to a linear
		// scan of the declared fields.
		for _, f := range coll.Fields {
			if f.Name == path.LastLevel() {
				return true
			}
		}
		return false
	}
	_, ok = coll.Field(path)
	return ok
}
