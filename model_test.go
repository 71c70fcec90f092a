package main

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"autograd-explorer/autograd"
)

func TestNewModel_ParameterCount(t *testing.T) {
	m, err := NewModel(Config{Inputs: 3, Hidden: []int{4, 5}, Outputs: 2, Seed: 1})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	// (3+1)*4 + (4+1)*5 + (5+1)*2
	if got := len(m.Params); got != 16+25+12 {
		t.Fatalf("expected 53 params, got %d", got)
	}
	if len(m.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(m.Layers))
	}
	if m.Layers[2].Neurons[0].Activation != Linear {
		t.Fatalf("expected linear output layer")
	}
	for _, p := range m.Params {
		if p.Data() < -1 || p.Data() >= 1 {
			t.Fatalf("weight %v outside [-1, 1)", p.Data())
		}
	}
	if !strings.Contains(m.Describe(), "params=53") {
		t.Fatalf("unexpected description %q", m.Describe())
	}
}

func TestNewModel_SeedIsDeterministic(t *testing.T) {
	a, _ := NewModel(Config{Seed: 42})
	b, _ := NewModel(Config{Seed: 42})
	for i := range a.Params {
		if a.Params[i].Data() != b.Params[i].Data() {
			t.Fatalf("param %d differs: %v vs %v", i, a.Params[i].Data(), b.Params[i].Data())
		}
	}
}

func TestNewModel_InvalidConfig(t *testing.T) {
	cases := []Config{
		{Activation: "softplus"},
		{Optimizer: "rmsprop"},
		{Hidden: []int{3, 0}},
		{Inputs: -1},
		{LearningRate: -0.1},
	}
	for _, c := range cases {
		if _, err := NewModel(c); err == nil {
			t.Fatalf("expected error for %+v", c)
		}
	}
}

func TestForward_MatchesManualNeuron(t *testing.T) {
	m, err := NewModel(Config{Inputs: 2, Hidden: []int{}, Outputs: 1, Seed: 3})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	n := m.Layers[0].Neurons[0]
	x := []float64{0.3, -0.8}
	want := n.Weights[0].Data()*x[0] + n.Weights[1].Data()*x[1] + n.Bias.Data()

	got, err := m.Predict(x)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if math.Abs(got[0]-want) > 1e-12 {
		t.Fatalf("expected %v, got %v", want, got[0])
	}

	if _, err := m.Predict([]float64{1}); err == nil {
		t.Fatalf("expected input size error")
	}
}

func TestForward_GradientsReachEveryParameter(t *testing.T) {
	m, err := NewModel(Config{Inputs: 2, Hidden: []int{3}, Outputs: 1, Activation: "sigmoid", Seed: 5})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	out, err := m.Forward(leaves([]float64{0.4, -0.6}))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	loss := MSELoss(out, []float64{1})
	if err := loss.Backward(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	for i, p := range m.Params {
		if p.Grad() == 0 {
			t.Fatalf("param %d received no gradient", i)
		}
	}
}

func TestMSELoss(t *testing.T) {
	p := []*autograd.Value{autograd.New(1), autograd.New(3)}
	loss := MSELoss(p, []float64{0, 1})
	if loss.Data() != 2.5 {
		t.Fatalf("expected (1 + 4) / 2 = 2.5, got %v", loss.Data())
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	// d/dp_i = (p_i - t_i)
	if p[0].Grad() != 1 || p[1].Grad() != 2 {
		t.Fatalf("unexpected grads %v %v", p[0].Grad(), p[1].Grad())
	}
}

func TestBCELoss_GradientIsSigmoidMinusTarget(t *testing.T) {
	for _, y := range []float64{0, 1} {
		logit := autograd.New(0.7)
		loss := BCELoss([]*autograd.Value{logit}, []float64{y})
		if err := loss.Backward(); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		want := 1/(1+math.Exp(-0.7)) - y
		if math.Abs(logit.Grad()-want) > 1e-9 {
			t.Fatalf("y=%v: expected %v, got %v", y, want, logit.Grad())
		}
	}
}

func TestBCELoss_SaturatedStaysFinite(t *testing.T) {
	loss := BCELoss([]*autograd.Value{autograd.New(60)}, []float64{0})
	if math.IsInf(loss.Data(), 0) || math.IsNaN(loss.Data()) {
		t.Fatalf("expected finite loss, got %v", loss.Data())
	}
}

func TestSGD_Step(t *testing.T) {
	p := autograd.New(1)
	p.SetGrad(0.5)
	opt := &SGD{Params: []*autograd.Value{p}, LearningRate: 0.1}
	opt.Step()
	if math.Abs(p.Data()-0.95) > 1e-12 {
		t.Fatalf("expected 0.95, got %v", p.Data())
	}
	opt.ZeroGrad()
	if p.Grad() != 0 {
		t.Fatalf("expected zero grad, got %v", p.Grad())
	}
}

func TestAdam_FirstStepMovesByLearningRate(t *testing.T) {
	p := autograd.New(1)
	p.SetGrad(3)
	opt := NewAdam([]*autograd.Value{p}, 0.01)
	opt.Step()
	// Bias-corrected first step is lr * g/|g|.
	if math.Abs(p.Data()-0.99) > 1e-6 {
		t.Fatalf("expected ~0.99, got %v", p.Data())
	}
}

func TestTrainBatchedSteps_ReducesLoss(t *testing.T) {
	rates := map[string]float64{"sgd": 0.2, "adam": 0.02}
	for opt, lr := range rates {
		m, err := NewModel(Config{Hidden: []int{6}, Optimizer: opt, LearningRate: lr, Seed: 11})
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		data, err := GenerateDataset("linear", 120, 11)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		before, _, err := Evaluate(m, data)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}

		rng := rand.New(rand.NewSource(11))
		resp, err := TrainBatchedSteps(m, data, 300, 16, rng)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if resp.Step != 300 || m.Steps != 300 {
			t.Fatalf("expected 300 steps, got %d", resp.Step)
		}
		if resp.GraphNodes == 0 {
			t.Fatalf("expected graph size to be reported")
		}

		after, acc, err := Evaluate(m, data)
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
		if after >= before {
			t.Fatalf("%s: expected loss to drop, before=%v after=%v", opt, before, after)
		}
		if acc < 0.7 {
			t.Fatalf("%s: expected accuracy >= 0.7, got %v", opt, acc)
		}
	}
}

func TestTrainStats_Diverged(t *testing.T) {
	for _, loss := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if !(TrainStats{Loss: loss}).Diverged() {
			t.Fatalf("expected %v to count as diverged", loss)
		}
	}
	if (TrainStats{Loss: 0.3}).Diverged() {
		t.Fatalf("expected finite loss not to count as diverged")
	}
}

func TestTrainBatchedSteps_FeatureMismatch(t *testing.T) {
	m, _ := NewModel(Config{Inputs: 3, Seed: 1})
	data, _ := GenerateDataset("xor", 10, 1)
	if _, err := TrainBatchedSteps(m, data, 1, 1, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected feature mismatch error")
	}
	if _, err := TrainBatchedSteps(m, nil, 1, 1, rand.New(rand.NewSource(1))); err == nil {
		t.Fatalf("expected empty dataset error")
	}
}

func TestGenerateDataset(t *testing.T) {
	for _, name := range Datasets {
		d, err := GenerateDataset(name, 50, 2)
		if err != nil {
			t.Fatalf("%s: expected nil error, got %v", name, err)
		}
		if d.Len() != 50 || d.Features() != 2 {
			t.Fatalf("%s: unexpected dims %d x %d", name, d.Len(), d.Features())
		}
		for i := 0; i < d.Len(); i++ {
			x, y := d.Example(i)
			if len(x) != 2 || (y != 0 && y != 1) {
				t.Fatalf("%s: bad example %v -> %v", name, x, y)
			}
		}
	}
	if _, err := GenerateDataset("spiral", 10, 1); err == nil {
		t.Fatalf("expected unknown dataset error")
	}
	if _, err := GenerateDataset("xor", 0, 1); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestGenerateDataset_XorLabels(t *testing.T) {
	d, _ := GenerateDataset("xor", 100, 9)
	for i := 0; i < d.Len(); i++ {
		x, y := d.Example(i)
		want := 0.0
		if (x[0] > 0) != (x[1] > 0) {
			want = 1
		}
		if y != want {
			t.Fatalf("row %d: expected %v, got %v", i, want, y)
		}
	}
}
