package autograd

// ZeroGrad sets the gradient of every given value to 0.
func ZeroGrad(vs ...*Value) {
	for _, v := range vs {
		v.grad = 0
	}
}

// ResetGradients zeroes the gradient of every node reachable from terminal,
// terminal included. Call it before a backward pass whose results must not
// include contributions from earlier passes.
func ResetGradients(terminal *Value) error {
	topo, err := TopologicalOrder(terminal)
	if err != nil {
		return err
	}
	ZeroGrad(topo...)
	return nil
}
