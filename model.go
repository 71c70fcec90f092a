package main

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"autograd-explorer/autograd"
)

// Config contains all key hyperparameters.
//
//   - inputs: features per example
//   - hidden: width of each hidden layer, in order
//   - outputs: values produced per example
//   - activation: relu, tanh or sigmoid, applied after every hidden layer
//   - optimizer: sgd or adam
//   - learning_rate: step size for optimization
type Config struct {
	Inputs       int     `json:"inputs"`
	Hidden       []int   `json:"hidden"`
	Outputs      int     `json:"outputs"`
	Activation   string  `json:"activation"`
	Optimizer    string  `json:"optimizer"`
	LearningRate float64 `json:"learning_rate"`
	Seed         int64   `json:"seed"`
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Inputs == 0 {
		c.Inputs = 2
	}
	if c.Hidden == nil {
		c.Hidden = []int{8, 8}
	}
	if c.Outputs == 0 {
		c.Outputs = 1
	}
	if c.Activation == "" {
		c.Activation = "tanh"
	}
	if c.Optimizer == "" {
		c.Optimizer = "sgd"
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.05
	}
	return c
}

// Validate reports configuration problems.
func (c Config) Validate() error {
	if c.Inputs < 1 || c.Outputs < 1 {
		return errors.Errorf("inputs and outputs must be positive, got %d and %d", c.Inputs, c.Outputs)
	}
	for i, h := range c.Hidden {
		if h < 1 {
			return errors.Errorf("hidden layer %d has width %d", i, h)
		}
	}
	if _, err := parseActivation(c.Activation); err != nil {
		return err
	}
	if c.Optimizer != "sgd" && c.Optimizer != "adam" {
		return errors.Errorf("unknown optimizer %q", c.Optimizer)
	}
	if c.LearningRate <= 0 {
		return errors.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// Activation is the nonlinearity applied by a neuron.
type Activation int

// Supported activations. Linear is the identity used by output layers.
const (
	Linear Activation = iota
	ReLU
	Tanh
	Sigmoid
)

func parseActivation(name string) (Activation, error) {
	switch name {
	case "linear":
		return Linear, nil
	case "relu":
		return ReLU, nil
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	}
	return Linear, errors.Errorf("unknown activation %q", name)
}

func (a Activation) apply(v *autograd.Value) *autograd.Value {
	switch a {
	case ReLU:
		return v.ReLU()
	case Tanh:
		return v.Tanh()
	case Sigmoid:
		return v.Sigmoid()
	}
	return v
}

// Neuron computes act(w·x + b).
type Neuron struct {
	Weights    []*autograd.Value
	Bias       *autograd.Value
	Activation Activation
}

// NewNeuron draws weights and bias uniformly from [-1, 1).
func NewNeuron(inputs int, act Activation, rng *rand.Rand) *Neuron {
	n := &Neuron{
		Weights:    make([]*autograd.Value, inputs),
		Activation: act,
	}
	for i := range n.Weights {
		n.Weights[i] = autograd.New(rng.Float64()*2 - 1)
	}
	n.Bias = autograd.New(rng.Float64()*2 - 1)
	return n
}

// Parameters returns weights followed by the bias.
func (n *Neuron) Parameters() []*autograd.Value {
	params := make([]*autograd.Value, 0, len(n.Weights)+1)
	params = append(params, n.Weights...)
	return append(params, n.Bias)
}

// Layer is a row of neurons sharing the same input.
type Layer struct {
	Neurons []*Neuron
}

// NewLayer creates outputs neurons, each reading inputs values.
func NewLayer(inputs, outputs int, act Activation, rng *rand.Rand) *Layer {
	l := &Layer{Neurons: make([]*Neuron, outputs)}
	for i := range l.Neurons {
		l.Neurons[i] = NewNeuron(inputs, act, rng)
	}
	return l
}

// Parameters returns the parameters of every neuron in order.
func (l *Layer) Parameters() []*autograd.Value {
	var params []*autograd.Value
	for _, n := range l.Neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}

// Model stores all trainable parameters and runtime state.
//
// Notes:
//   - Params is a flat list so optimizer updates are easy.
//   - mu protects parameters from concurrent HTTP requests; graphs built
//     from the same parameters must never be differentiated concurrently.
type Model struct {
	Config    Config
	Layers    []*Layer
	Params    []*autograd.Value
	Optimizer Optimizer
	Steps     int
	mu        sync.Mutex
}

// NewModel validates config and initializes all weights. Hidden layers use
// the configured activation and the output layer is linear.
func NewModel(config Config) (*Model, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	act, _ := parseActivation(config.Activation)
	rng := rand.New(rand.NewSource(config.Seed))

	m := &Model{Config: config}
	sizes := append([]int{config.Inputs}, config.Hidden...)
	sizes = append(sizes, config.Outputs)
	for i := 0; i < len(sizes)-1; i++ {
		layerAct := act
		if i == len(sizes)-2 {
			layerAct = Linear
		}
		layer := NewLayer(sizes[i], sizes[i+1], layerAct, rng)
		m.Layers = append(m.Layers, layer)
		m.Params = append(m.Params, layer.Parameters()...)
	}

	switch config.Optimizer {
	case "adam":
		m.Optimizer = NewAdam(m.Params, config.LearningRate)
	default:
		m.Optimizer = &SGD{Params: m.Params, LearningRate: config.LearningRate}
	}
	return m, nil
}

// Describe is a one-line summary for logs.
func (m *Model) Describe() string {
	return fmt.Sprintf("mlp %d-%v-%d act=%s opt=%s params=%d",
		m.Config.Inputs, m.Config.Hidden, m.Config.Outputs,
		m.Config.Activation, m.Config.Optimizer, len(m.Params))
}
