package main

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dataset holds examples row by row: X is n×features, Y has one binary or
// real target per row.
type Dataset struct {
	Name string
	X    *mat.Dense
	Y    *mat.VecDense
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	r, _ := d.X.Dims()
	return r
}

// Features returns the number of inputs per example.
func (d *Dataset) Features() int {
	_, c := d.X.Dims()
	return c
}

// Example copies row i out of the dataset.
func (d *Dataset) Example(i int) ([]float64, float64) {
	return mat.Row(nil, i, d.X), d.Y.AtVec(i)
}

// Datasets lists the generator names accepted by GenerateDataset.
var Datasets = []string{"xor", "circle", "linear"}

// GenerateDataset builds n synthetic two-feature examples.
//
//   - xor: label 1 when the signs of the two coordinates differ
//   - circle: label 1 inside radius 0.5
//   - linear: label 1 above the line y = 0.5x + 0.1
func GenerateDataset(name string, n int, seed int64) (*Dataset, error) {
	if n < 1 {
		return nil, errors.Errorf("dataset size must be positive, got %d", n)
	}
	var label func(x, y float64) float64
	switch name {
	case "xor":
		label = func(x, y float64) float64 {
			if (x > 0) != (y > 0) {
				return 1
			}
			return 0
		}
	case "circle":
		label = func(x, y float64) float64 {
			if math.Hypot(x, y) < 0.5 {
				return 1
			}
			return 0
		}
	case "linear":
		label = func(x, y float64) float64 {
			if y > 0.5*x+0.1 {
				return 1
			}
			return 0
		}
	default:
		return nil, errors.Errorf("unknown dataset %q", name)
	}

	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		a, b := rng.Float64()*2-1, rng.Float64()*2-1
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y.SetVec(i, label(a, b))
	}
	return &Dataset{Name: name, X: x, Y: y}, nil
}
