package model

// CollectionAddress identifies a collection within a dataset.
type CollectionAddress struct {
	Dataset    string
	Collection string
}

// String renders the address in "dataset:collection" form, as used in
// not_traversable reports and result-store keys.
func (a CollectionAddress) String() string {
	return a.Dataset + ":" + a.Collection
}

// RootCollectionAddress is the distinguished address of the synthetic root
// node that represents the identity source.
var RootCollectionAddress = CollectionAddress{Dataset: "__root__", Collection: "__root__"}

// Dataset owns a set of Collections and the connection it should be queried
// through. Dataset keys (FidesKey) are unique across the catalog consulted
// by a graph build.
type Dataset struct {
	FidesKey      string
	Name          string
	Collections   []Collection
	ConnectionRef string
}

// Collection looks up one of the dataset's collections by name.
func (d *Dataset) Collection(name string) (*Collection, bool) {
	for i := range d.Collections {
		if d.Collections[i].Name == name {
			return &d.Collections[i], true
		}
	}
	return nil, false
}

// Address returns the CollectionAddress for a named collection of this
// dataset.
func (d *Dataset) Address(collectionName string) CollectionAddress {
	return CollectionAddress{Dataset: d.FidesKey, Collection: collectionName}
}
