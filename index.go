package eventgraph

// Index is a read-only adjacency view over a node and edge list, built once
// per pass so rules and resolvers run in O(nodes + edges).
type Index struct {
	nodes map[string]*Node
	out   map[string][]Edge
	in    map[string][]Edge
}

// NewIndex builds an Index. The node slice must not be mutated while the
// index is in use.
func NewIndex(nodes []Node, edges []Edge) *Index {
	ix := &Index{
		nodes: make(map[string]*Node, len(nodes)),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
	for i := range nodes {
		ix.nodes[nodes[i].ID] = &nodes[i]
	}
	for _, e := range edges {
		ix.out[e.Source] = append(ix.out[e.Source], e)
		ix.in[e.Target] = append(ix.in[e.Target], e)
	}
	return ix
}

// Node looks up a node by id.
func (ix *Index) Node(id string) (*Node, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

// Outgoing returns the edges leaving id.
func (ix *Index) Outgoing(id string) []Edge {
	return ix.out[id]
}

// Incoming returns the edges arriving at id.
func (ix *Index) Incoming(id string) []Edge {
	return ix.in[id]
}

// upstream returns the source node of the first incoming edge of id.
func (ix *Index) upstream(id string) (*Node, bool) {
	in := ix.in[id]
	if len(in) == 0 {
		return nil, false
	}
	return ix.Node(in[0].Source)
}
