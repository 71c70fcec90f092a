package autograd

// BackwardOption customises a backward pass.
type BackwardOption func(*backwardConfig)

type backwardConfig struct {
	visit func(*Value)
	seed  float64
}

// WithVisitor calls fn for every node right before its backward rule runs,
// in invocation order.
func WithVisitor(fn func(*Value)) BackwardOption {
	return func(c *backwardConfig) { c.visit = fn }
}

// WithSeed replaces the default terminal gradient of 1.
func WithSeed(seed float64) BackwardOption {
	return func(c *backwardConfig) { c.seed = seed }
}

// TopologicalOrder returns every node reachable from terminal in DFS
// post-order: each node appears once, after all of its parents.
//
// A node reached again while it is still on the DFS path means the parent
// links form a cycle; the walk stops with an error wrapping ErrCycleFound.
func TopologicalOrder(terminal *Value) ([]*Value, error) {
	if terminal == nil {
		return nil, &GraphError{Kind: ErrNilValue, Msg: "terminal"}
	}

	const (
		white = iota
		gray
		black
	)

	var (
		topo  []*Value
		color = make(map[*Value]int)
		path  []*Value
	)

	var buildTopo func(*Value) error
	buildTopo = func(node *Value) error {
		switch color[node] {
		case black:
			return nil
		case gray:
			start := 0
			for i, p := range path {
				if p == node {
					start = i
					break
				}
			}
			cycle := append(append([]*Value(nil), path[start:]...), node)
			return cycleError(cycle)
		}
		color[node] = gray
		path = append(path, node)
		for _, parent := range node.parents {
			if err := buildTopo(parent); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		color[node] = black
		topo = append(topo, node)
		return nil
	}

	if err := buildTopo(terminal); err != nil {
		return nil, err
	}
	return topo, nil
}

// Backward performs reverse-mode autodiff from terminal to all its ancestors.
//
// Process:
//  1. Build the topological order so each node comes after its parents.
//  2. Seed the terminal gradient with 1 (dT/dT = 1).
//  3. Walk the order in reverse and run each backward rule exactly once.
//
// Gradients of other nodes are not reset first; stale gradients from an
// earlier pass keep accumulating unless the caller zeroes them. On error
// nothing is modified.
func Backward(terminal *Value, opts ...BackwardOption) error {
	cfg := backwardConfig{seed: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	topo, err := TopologicalOrder(terminal)
	if err != nil {
		return err
	}

	terminal.SetGrad(cfg.seed)
	for i := len(topo) - 1; i >= 0; i-- {
		node := topo[i]
		if cfg.visit != nil {
			cfg.visit(node)
		}
		node.RunBackwardRule()
	}
	return nil
}

// Backward runs Backward with v as the terminal.
func (v *Value) Backward() error {
	return Backward(v)
}
