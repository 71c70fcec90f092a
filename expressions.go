package main

import "autograd-explorer/autograd"

// expression is a named scalar function offered by /api/gradcheck.
type expression struct {
	arity int
	build autograd.Builder
	point []float64
}

var expressions = map[string]expression{
	// sigmoid(a*b)
	"sigmoid_mul": {
		arity: 2,
		build: func(l []*autograd.Value) *autograd.Value { return l[0].Mul(l[1]).Sigmoid() },
		point: []float64{0.5, -1.2},
	},
	// sigmoid(x1*w1 + x2*w2 + b)
	"neuron": {
		arity: 5,
		build: neuronExpression,
		point: []float64{2.0, 0.5, 1.25, 0.75, -0.5},
	},
	// tanh(a) / (1 + exp(b)) - relu(a - b)
	"tanh_div": {
		arity: 2,
		build: func(l []*autograd.Value) *autograd.Value {
			return l[0].Tanh().Div(l[1].Exp().AddScalar(1)).Sub(l[0].Sub(l[1]).ReLU())
		},
		point: []float64{0.3, -0.4},
	},
	// a^b; b gets no gradient, so this one reports a mismatch.
	"pow": {
		arity: 2,
		build: func(l []*autograd.Value) *autograd.Value { return l[0].Pow(l[1]) },
		point: []float64{2, 3},
	},
}

// neuronExpression takes leaves in the order x1, w1, x2, w2, b.
func neuronExpression(l []*autograd.Value) *autograd.Value {
	x1, w1, x2, w2, b := l[0], l[1], l[2], l[3], l[4]
	return x1.Mul(w1).Add(x2.Mul(w2)).Add(b).Sigmoid()
}
