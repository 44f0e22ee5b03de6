// Package modeltest builds small deterministic models for tests.
package modeltest

import (
	"math/rand"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/model"
)

// Weights returns seeded random weights with the production topology
// scaled down: inputDim -> hidden -> hidden, and hidden -> hidden/2 -> 1
// per task.
func Weights(inputDim, hidden int, seed int64) model.Weights {
	rng := rand.New(rand.NewSource(seed))
	layer := func(in, out int) model.Linear {
		l := model.Linear{Weight: make([][]float64, out), Bias: make([]float64, out)}
		for o := range l.Weight {
			l.Weight[o] = make([]float64, in)
			for i := range l.Weight[o] {
				l.Weight[o][i] = rng.NormFloat64() * 0.5
			}
			l.Bias[o] = rng.NormFloat64() * 0.1
		}
		return l
	}
	headHidden := max(hidden/2, 1)
	return model.Weights{
		InputDim: inputDim,
		Backbone: []model.Linear{layer(inputDim, hidden), layer(hidden, hidden)},
		Heads: map[domain.Task][]model.Linear{
			domain.TaskTransaction: {layer(hidden, headHidden), layer(headHidden, 1)},
			domain.TaskAccount:     {layer(hidden, headHidden), layer(headHidden, 1)},
		},
	}
}

// New returns a model built from Weights. It panics on invalid shapes,
// which cannot happen for the generated topology.
func New(inputDim, hidden int, seed int64) *model.Model {
	m, err := model.New(Weights(inputDim, hidden, seed))
	if err != nil {
		panic(err)
	}
	return m
}
