package autograd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
)

// Builder constructs a scalar expression from leaves holding the inputs.
// It must build a fresh graph every call.
type Builder func(leaves []*Value) *Value

// Evaluate builds the expression at x and returns its value.
func (b Builder) Evaluate(x []float64) float64 {
	leaves := make([]*Value, len(x))
	for i, xi := range x {
		leaves[i] = New(xi)
	}
	return b(leaves).Data()
}

// NumericalGradient estimates the gradient of f at x with central
// differences. step <= 0 uses the gonum default.
func NumericalGradient(f func([]float64) float64, x []float64, step float64) []float64 {
	settings := &fd.Settings{Formula: fd.Central}
	if step > 0 {
		settings.Step = step
	}
	return fd.Gradient(nil, f, x, settings)
}

// GradCheck compares one engine gradient with its numerical estimate.
type GradCheck struct {
	Index     int     `json:"index"`
	Analytic  float64 `json:"analytic"`
	Numerical float64 `json:"numerical"`
	AbsError  float64 `json:"abs_error"`
}

// GradCheckReport is the result of CheckGradients.
type GradCheckReport struct {
	Value    float64     `json:"value"`
	Checks   []GradCheck `json:"checks"`
	MaxError float64     `json:"max_error"`
	OK       bool        `json:"ok"`
}

// CheckGradients runs a backward pass through the expression built at x and
// compares every leaf gradient with a central-difference estimate. The report
// is OK when every absolute error is within tol.
func CheckGradients(build Builder, x []float64, tol float64) (GradCheckReport, error) {
	leaves := make([]*Value, len(x))
	for i, xi := range x {
		leaves[i] = New(xi).Named(fmt.Sprintf("x%d", i))
	}
	out := build(leaves)
	if out == nil {
		return GradCheckReport{}, &GraphError{Kind: ErrNilValue, Msg: "builder returned nil"}
	}
	if err := Backward(out); err != nil {
		return GradCheckReport{}, err
	}

	numerical := NumericalGradient(build.Evaluate, x, 0)

	report := GradCheckReport{Value: out.Data(), OK: true}
	for i, leaf := range leaves {
		diff := math.Abs(leaf.Grad() - numerical[i])
		if math.IsNaN(diff) || diff > tol {
			report.OK = false
		}
		if diff > report.MaxError {
			report.MaxError = diff
		}
		report.Checks = append(report.Checks, GradCheck{
			Index:     i,
			Analytic:  leaf.Grad(),
			Numerical: numerical[i],
			AbsError:  diff,
		})
	}
	return report, nil
}
