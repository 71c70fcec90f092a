package main

import (
	"math"

	"autograd-explorer/autograd"
)

// InitRequest is the payload for /api/init.
// It provides model hyperparameters and the synthetic dataset to train on.
type InitRequest struct {
	Config      Config `json:"config"`
	Dataset     string `json:"dataset"`
	DatasetSize int    `json:"dataset_size"`
}

// InitResponse reports the freshly built model.
type InitResponse struct {
	Status  string `json:"status"`
	Params  int    `json:"params"`
	Dataset string `json:"dataset"`
	Size    int    `json:"size"`
}

// TrainRequest controls how much work /api/train performs in one call.
//
// All fields are optional; server uses safe defaults when omitted.
type TrainRequest struct {
	StepsPerCall int `json:"steps_per_call"`
	BatchSize    int `json:"batch_size"`
}

// TrainResponse reports one training call summary.
//
// Losses are null and Diverged is true once they stop being finite numbers;
// the model keeps its NaN/Inf parameters until /api/init is called again.
type TrainResponse struct {
	Step          int      `json:"step"`
	Loss          *float64 `json:"loss"`
	BatchAccuracy float64  `json:"batch_accuracy"`
	GraphNodes    int      `json:"graph_nodes"`
	EvalLoss      *float64 `json:"eval_loss"`
	EvalAccuracy  float64  `json:"eval_accuracy"`
	Diverged      bool     `json:"diverged"`
}

// finite returns nil for NaN and Inf, which JSON cannot carry.
func finite(x float64) *float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return nil
	}
	return &x
}

// PredictRequest carries one feature vector.
type PredictRequest struct {
	Features []float64 `json:"features"`
}

// PredictResponse carries raw outputs.
type PredictResponse struct {
	Outputs []float64 `json:"outputs"`
}

// GraphRequest names the leaves of the single-neuron expression
// sigmoid(x1*w1 + x2*w2 + b). Omitted leaves default to the classic example.
type GraphRequest struct {
	X1 *float64 `json:"x1"`
	W1 *float64 `json:"w1"`
	X2 *float64 `json:"x2"`
	W2 *float64 `json:"w2"`
	B  *float64 `json:"b"`
}

// GraphResponse is the differentiated expression graph.
type GraphResponse struct {
	Graph autograd.Graph `json:"graph"`
	Edges int            `json:"edges"`
}

// GradCheckRequest picks a named expression and where to evaluate it.
type GradCheckRequest struct {
	Expression string    `json:"expression"`
	Point      []float64 `json:"point"`
	Tolerance  float64   `json:"tolerance"`
}
