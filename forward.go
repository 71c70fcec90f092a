package main

import (
	"github.com/pkg/errors"

	"autograd-explorer/autograd"
)

// Forward computes act(w·x + b) for one example.
func (n *Neuron) Forward(x []*autograd.Value) *autograd.Value {
	sum := autograd.Dot(n.Weights, x).Add(n.Bias)
	return n.Activation.apply(sum)
}

// Forward applies every neuron of the layer to the same input.
func (l *Layer) Forward(x []*autograd.Value) []*autograd.Value {
	out := make([]*autograd.Value, len(l.Neurons))
	for i, n := range l.Neurons {
		out[i] = n.Forward(x)
	}
	return out
}

// Forward feeds x through every layer in order.
func (m *Model) Forward(x []*autograd.Value) ([]*autograd.Value, error) {
	if len(x) != m.Config.Inputs {
		return nil, errors.Errorf("expected %d inputs, got %d", m.Config.Inputs, len(x))
	}
	for _, layer := range m.Layers {
		x = layer.Forward(x)
	}
	return x, nil
}

// Predict runs Forward on plain numbers and returns plain numbers.
func (m *Model) Predict(features []float64) ([]float64, error) {
	out, err := m.Forward(leaves(features))
	if err != nil {
		return nil, err
	}
	values := make([]float64, len(out))
	for i, o := range out {
		values[i] = o.Data()
	}
	return values, nil
}

func leaves(xs []float64) []*autograd.Value {
	out := make([]*autograd.Value, len(xs))
	for i, x := range xs {
		out[i] = autograd.Const(x)
	}
	return out
}

// MSELoss is mean((pred - target)^2).
func MSELoss(pred []*autograd.Value, target []float64) *autograd.Value {
	terms := make([]*autograd.Value, len(pred))
	for i, p := range pred {
		terms[i] = p.Sub(autograd.Const(target[i])).PowScalar(2)
	}
	return autograd.Sum(terms...).MulScalar(1.0 / float64(len(pred)))
}

// BCELoss is binary cross-entropy of sigmoid(logit) against targets in {0, 1}.
// The probability is clamped away from 0 and 1 so the log stays finite.
func BCELoss(logits []*autograd.Value, target []float64) *autograd.Value {
	const eps = 1e-7
	terms := make([]*autograd.Value, len(logits))
	for i, logit := range logits {
		p := logit.Sigmoid()
		if p.Data() < eps {
			p = p.AddScalar(eps)
		} else if p.Data() > 1-eps {
			p = p.AddScalar(-eps)
		}
		// -(y*log(p) + (1-y)*log(1-p))
		y := target[i]
		pos := p.Log().MulScalar(y)
		neg := autograd.Const(1).Sub(p).Log().MulScalar(1 - y)
		terms[i] = pos.Add(neg).Neg()
	}
	return autograd.Sum(terms...).MulScalar(1.0 / float64(len(logits)))
}
