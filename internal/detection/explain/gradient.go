package explain

import (
	"context"
	"math"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/model"
)

// Gradient attributes by the absolute gradient of the logit with respect
// to each input.
type Gradient struct {
	model Predictor
}

// NewGradient creates a gradient explainer.
func NewGradient(m Predictor) *Gradient {
	return &Gradient{model: m}
}

// Method implements Explainer.
func (g *Gradient) Method() Method {
	return MethodGradient
}

// Explain implements Explainer. The expected value reported is the
// prediction probability itself; gradients carry no additive baseline.
func (g *Gradient) Explain(_ context.Context, task domain.Task, x []float64, names []string) (*Result, error) {
	logit, grad, err := g.model.Gradient(task, x)
	if err != nil {
		return nil, err
	}

	importances := make([]float64, len(grad))
	var total float64
	for i, v := range grad {
		importances[i] = math.Abs(v)
		total += importances[i]
	}

	normalized := make([]float64, len(importances))
	for i, v := range importances {
		if total > 0 {
			normalized[i] = v / total
		} else {
			normalized[i] = v
		}
	}

	prob := model.Sigmoid(logit)
	return &Result{
		Method:        MethodGradient,
		Task:          task,
		TopFeatures:   rank(importances, x, names),
		Importances:   importances,
		Normalized:    normalized,
		ExpectedValue: prob,
		Prediction:    prob,
		Probability:   prob,
		Logit:         logit,
	}, nil
}
