package datagraph

import "github.com/ethyca-go/privacyrun/internal/model"

// Graph is the full set of nodes and edges built for one traversal planning
// pass, keyed by collection address for O(1) lookup.
type Graph struct {
	Nodes map[model.CollectionAddress]*Node
	Edges []Edge
}

// Node looks up a node by address.
func (g *Graph) Node(addr model.CollectionAddress) (*Node, bool) {
	n, ok := g.Nodes[addr]
	return n, ok
}

// Root returns the synthetic identity root node. BuildGraph guarantees it is
// always present.
func (g *Graph) Root() *Node {
	return g.Nodes[model.RootCollectionAddress]
}

func newGraph() *Graph {
	return &Graph{Nodes: make(map[model.CollectionAddress]*Node)}
}

func (g *Graph) ensureNode(addr model.CollectionAddress, ds *model.Dataset, coll *model.Collection) *Node {
	n, ok := g.Nodes[addr]
	if !ok {
		n = &Node{Address: addr, Dataset: ds, Collection: coll}
		g.Nodes[addr] = n
	}
	return n
}

func (g *Graph) addEdge(e Edge) {
	g.Edges = append(g.Edges, e)
	if from, ok := g.Nodes[e.From]; ok {
		from.OutEdges = append(from.OutEdges, e)
	}
	if to, ok := g.Nodes[e.To]; ok {
		to.InEdges = append(to.InEdges, e)
	}
}
