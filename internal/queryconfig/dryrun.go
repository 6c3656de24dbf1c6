package queryconfig

import "github.com/ethyca-go/privacyrun/internal/model"

// queryToken is a placeholder value substituted for data dry-run queries
// don't actually have, distinct from any real field value by identity.
type queryToken struct{ n int }

// displayQueryData builds a representative input map for DryRunQuery: one
// token per query field path if its only source is the identity root
// (single value expected), two distinct tokens otherwise (so the generated
// query exercises its multi-value IN-clause branch).
func displayQueryData(n Node) map[string][]any {
	sources := querySources(n)
	out := map[string][]any{}
	tok := 0
	next := func() queryToken {
		tok++
		return queryToken{n: tok}
	}

	for path, addrs := range sources {
		if len(addrs) == 1 && addrs[0] == model.RootCollectionAddress {
			out[path] = []any{next()}
		} else {
			out[path] = []any{next(), next()}
		}
	}
	return out
}

// querySources maps each query field path to the collection addresses that
// feed it, for display purposes only.
func querySources(n Node) map[string][]model.CollectionAddress {
	out := map[string][]model.CollectionAddress{}
	for _, e := range n.Graph.InEdges {
		path := e.ToField.StringPath()
		out[path] = append(out[path], e.From)
	}
	return out
}
