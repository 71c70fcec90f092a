package autograd

// Node is the exported view of one value in a graph.
type Node struct {
	ID      int     `json:"id"`
	Label   string  `json:"label,omitempty"`
	Op      string  `json:"op"`
	Data    float64 `json:"data"`
	Grad    float64 `json:"grad"`
	Parents []int   `json:"parents,omitempty"`
}

// Graph lists nodes in topological order; a node's parents always have
// smaller IDs.
type Graph struct {
	Nodes    []Node `json:"nodes"`
	Terminal int    `json:"terminal"`
}

// Export snapshots the graph reachable from terminal.
func Export(terminal *Value) (Graph, error) {
	topo, err := TopologicalOrder(terminal)
	if err != nil {
		return Graph{}, err
	}

	ids := make(map[*Value]int, len(topo))
	nodes := make([]Node, 0, len(topo))
	for i, v := range topo {
		ids[v] = i
		n := Node{
			ID:    i,
			Label: v.label,
			Op:    v.op.String(),
			Data:  v.data,
			Grad:  v.grad,
		}
		for _, p := range v.parents {
			n.Parents = append(n.Parents, ids[p])
		}
		nodes = append(nodes, n)
	}
	return Graph{Nodes: nodes, Terminal: len(nodes) - 1}, nil
}

// Edges returns the number of parent links in g.
func (g Graph) Edges() int {
	n := 0
	for _, node := range g.Nodes {
		n += len(node.Parents)
	}
	return n
}
