package main

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"autograd-explorer/autograd"
)

// Optimizer applies gradients to parameters.
//
// ZeroGrad must run before each accumulation round: backward passes add to
// whatever gradient a parameter already holds.
type Optimizer interface {
	ZeroGrad()
	Step()
}

// SGD performs value -= lr * grad.
type SGD struct {
	Params       []*autograd.Value
	LearningRate float64
}

// ZeroGrad clears every parameter gradient.
func (o *SGD) ZeroGrad() { autograd.ZeroGrad(o.Params...) }

// Step moves every parameter against its gradient.
func (o *SGD) Step() {
	for _, p := range o.Params {
		p.SetData(p.Data() - o.LearningRate*p.Grad())
	}
}

// Adam keeps per-parameter moving averages of the gradient and its square.
type Adam struct {
	Params       []*autograd.Value
	LearningRate float64
	Beta1, Beta2 float64
	Eps          float64
	m, v         []float64
	t            int
}

// NewAdam uses the betas the playground has always trained with.
func NewAdam(params []*autograd.Value, lr float64) *Adam {
	return &Adam{
		Params:       params,
		LearningRate: lr,
		Beta1:        0.85,
		Beta2:        0.99,
		Eps:          1e-8,
		m:            make([]float64, len(params)),
		v:            make([]float64, len(params)),
	}
}

// ZeroGrad clears every parameter gradient; moment estimates are kept.
func (o *Adam) ZeroGrad() { autograd.ZeroGrad(o.Params...) }

// Step applies one bias-corrected Adam update.
func (o *Adam) Step() {
	o.t++
	for i, p := range o.Params {
		g := p.Grad()
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*g
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*g*g
		mHat := o.m[i] / (1 - math.Pow(o.Beta1, float64(o.t)))
		vHat := o.v[i] / (1 - math.Pow(o.Beta2, float64(o.t)))
		p.SetData(p.Data() - o.LearningRate*mHat/(math.Sqrt(vHat)+o.Eps))
	}
}

// exampleLoss builds the loss graph for one example. Single-output models
// are trained as binary classifiers with BCE, others with MSE against a
// one-hot target.
func exampleLoss(model *Model, x []float64, y float64) (*autograd.Value, []*autograd.Value, error) {
	out, err := model.Forward(leaves(x))
	if err != nil {
		return nil, nil, err
	}
	if len(out) == 1 {
		return BCELoss(out, []float64{y}), out, nil
	}
	target := make([]float64, len(out))
	if idx := int(y); idx >= 0 && idx < len(target) {
		target[idx] = 1
	}
	return MSELoss(out, target), out, nil
}

// correct reports whether the prediction matches the label.
func correct(out []*autograd.Value, y float64) bool {
	if len(out) == 1 {
		return (out[0].Data() > 0) == (y > 0.5)
	}
	best := 0
	for i, o := range out {
		if o.Data() > out[best].Data() {
			best = i
		}
	}
	return best == int(y)
}

// trainOneExample computes one training loss and backpropagates gradients.
//
// It does not update parameters by itself.
func trainOneExample(model *Model, x []float64, y float64) (float64, bool, int, error) {
	loss, out, err := exampleLoss(model, x, y)
	if err != nil {
		return 0, false, 0, err
	}
	start := time.Now()
	nodes := 0
	if err := autograd.Backward(loss, autograd.WithVisitor(func(*autograd.Value) { nodes++ })); err != nil {
		return 0, false, 0, errors.Wrap(err, "backward")
	}
	backwardDuration.Observe(time.Since(start).Seconds())
	graphNodes.Observe(float64(nodes))
	return loss.Data(), correct(out, y), nodes, nil
}

// TrainStats summarizes one TrainBatchedSteps call. Loss is NaN or Inf when
// training diverged.
type TrainStats struct {
	Step          int
	Loss          float64
	BatchAccuracy float64
	GraphNodes    int
}

// Diverged reports whether the loss is no longer a finite number.
func (s TrainStats) Diverged() bool {
	return math.IsNaN(s.Loss) || math.IsInf(s.Loss, 0)
}

// TrainBatchedSteps runs multiple optimizer steps, each with gradient
// accumulation over a mini-batch of random examples.
func TrainBatchedSteps(model *Model, data *Dataset, stepsPerCall, batchSize int, rng *rand.Rand) (TrainStats, error) {
	if data == nil || data.Len() == 0 {
		return TrainStats{}, errors.New("training dataset is empty")
	}
	if data.Features() != model.Config.Inputs {
		return TrainStats{}, errors.Errorf("dataset has %d features, model expects %d", data.Features(), model.Config.Inputs)
	}
	if stepsPerCall < 1 {
		stepsPerCall = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}

	resp := TrainStats{}
	avgLossAcrossSteps := 0.0

	for step := 0; step < stepsPerCall; step++ {
		// Ensure gradients are clean before accumulating batch gradients.
		model.Optimizer.ZeroGrad()

		batchLoss := 0.0
		hits := 0
		for b := 0; b < batchSize; b++ {
			x, y := data.Example(rng.Intn(data.Len()))
			loss, ok, nodes, err := trainOneExample(model, x, y)
			if err != nil {
				return TrainStats{}, err
			}
			batchLoss += loss
			if ok {
				hits++
			}
			resp.GraphNodes = nodes
		}

		// Scale gradients by batch size so update magnitude remains stable.
		scale := 1.0 / float64(batchSize)
		for _, p := range model.Params {
			p.SetGrad(p.Grad() * scale)
		}

		model.Optimizer.Step()
		model.Steps++
		trainingSteps.Inc()

		avgLossAcrossSteps += batchLoss / float64(batchSize)
		resp.BatchAccuracy = float64(hits) / float64(batchSize)
	}

	resp.Step = model.Steps
	resp.Loss = avgLossAcrossSteps / float64(stepsPerCall)
	trainingLoss.Set(resp.Loss)
	return resp, nil
}

// Evaluate returns mean loss and accuracy over the whole dataset without
// touching gradients.
func Evaluate(model *Model, data *Dataset) (float64, float64, error) {
	if data == nil || data.Len() == 0 {
		return 0, 0, errors.New("evaluation dataset is empty")
	}
	total, hits := 0.0, 0
	for i := 0; i < data.Len(); i++ {
		x, y := data.Example(i)
		loss, out, err := exampleLoss(model, x, y)
		if err != nil {
			return 0, 0, err
		}
		total += loss.Data()
		if correct(out, y) {
			hits++
		}
	}
	n := float64(data.Len())
	return total / n, float64(hits) / n, nil
}
