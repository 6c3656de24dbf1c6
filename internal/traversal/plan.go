// Package traversal turns a datagraph.Graph into a deterministic execution
// order: every collection reachable from the identity root, ordered so a
// node is only visited after every node that feeds it a filter value.
package traversal

import (
	"fmt"
	"sort"

	"github.com/ethyca-go/privacyrun/internal/datagraph"
	"github.com/ethyca-go/privacyrun/internal/model"
)

// NotTraversableEntry reports one collection the planner could not reach
// from the identity root, for inclusion in a not_traversable report.
type NotTraversableEntry struct {
	Address model.CollectionAddress
	Message string
}

// Plan is the result of planning a traversal: a topologically sorted order
// of reachable collections, plus the set the planner could not reach.
type Plan struct {
	Order          []model.CollectionAddress
	NotTraversable []NotTraversableEntry
}

// Build runs Kahn's algorithm over g, breaking ties deterministically by
// (dataset key, collection name) so the same graph always yields the same
// order. Root is excluded from Order; it is never queried, only used to
// seed identity values. Nodes unreachable from root are reported in
// NotTraversable instead of causing an error: a run continues to completion
// over whatever it can reach, and reports the rest, per the traversal's
// "best effort with a report" contract.
func Build(g *datagraph.Graph) *Plan {
	reachable := reachableFrom(g, model.RootCollectionAddress)

	inDegree := make(map[model.CollectionAddress]int, len(reachable))
	for addr := range reachable {
		inDegree[addr] = 0
	}
	for _, e := range g.Edges {
		if e.From == model.RootCollectionAddress {
			continue
		}
		if _, ok := reachable[e.From]; !ok {
			continue
		}
		if _, ok := reachable[e.To]; ok {
			inDegree[e.To]++
		}
	}

	var ready []model.CollectionAddress
	for addr, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, addr)
		}
	}
	sortAddresses(ready)

	var order []model.CollectionAddress
	for len(ready) > 0 {
		sortAddresses(ready)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		node, ok := g.Node(next)
		if !ok {
			continue
		}
		for _, e := range node.OutEdges {
			if _, ok := reachable[e.To]; !ok {
				continue
			}
			inDegree[e.To]--
			if inDegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}

	plan := &Plan{Order: order}
	for addr := range g.Nodes {
		if addr == model.RootCollectionAddress {
			continue
		}
		if _, ok := reachable[addr]; !ok {
			plan.NotTraversable = append(plan.NotTraversable, NotTraversableEntry{
				Address: addr,
				Message: fmt.Sprintf("Node %s is not reachable from any identity field given in the request.", addr.String()),
			})
			continue
		}
		if inDegree[addr] != 0 {
			plan.NotTraversable = append(plan.NotTraversable, NotTraversableEntry{
				Address: addr,
				Message: fmt.Sprintf("Node %s is reachable from the identity root but participates in a non-root reference cycle and cannot be ordered.", addr.String()),
			})
		}
	}
	sort.Slice(plan.NotTraversable, func(i, j int) bool {
		return addressLess(plan.NotTraversable[i].Address, plan.NotTraversable[j].Address)
	})

	return plan
}

func reachableFrom(g *datagraph.Graph, start model.CollectionAddress) map[model.CollectionAddress]bool {
	visited := map[model.CollectionAddress]bool{start: true}
	queue := []model.CollectionAddress{start}

	const maxVisited = 1_000_000 // guards against a malformed catalog producing an unbounded walk
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		node, ok := g.Node(cur)
		if !ok {
			continue
		}
		for _, e := range node.OutEdges {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			queue = append(queue, e.To)
			if len(visited) > maxVisited {
				return visited
			}
		}
	}
	delete(visited, start)
	return visited
}

func sortAddresses(addrs []model.CollectionAddress) {
	sort.Slice(addrs, func(i, j int) bool { return addressLess(addrs[i], addrs[j]) })
}

func addressLess(a, b model.CollectionAddress) bool {
	if a.Dataset != b.Dataset {
		return a.Dataset < b.Dataset
	}
	return a.Collection < b.Collection
}
