// Package explain attributes a prediction to its input features.
//
// Two strategies share the Explainer contract: Gradient (input gradients,
// fast) and Shapley (sampled Shapley values over a background set, additive).
// Both rank by absolute importance and keep the full vector.
package explain

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vietddude/scamradar/internal/core/domain"
)

// TopK is the number of ranked features returned to callers.
const TopK = 5

// Method names an attribution strategy.
type Method string

const (
	MethodGradient Method = "gradient_based"
	MethodShapley  Method = "shapley_sampling"
)

// ParseMethod accepts the configuration spelling of a strategy.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "gradient", string(MethodGradient):
		return MethodGradient, nil
	case "shapley", "shap", string(MethodShapley):
		return MethodShapley, nil
	}
	return "", fmt.Errorf("unknown explain strategy %q", s)
}

// Predictor is the model surface the strategies need.
type Predictor interface {
	Forward(task domain.Task, x []float64) (float64, error)
	Gradient(task domain.Task, x []float64) (float64, []float64, error)
}

// Contribution is one feature's share of a prediction.
type Contribution struct {
	Index        int     `json:"index"`
	FeatureName  string  `json:"feature_name"`
	Importance   float64 `json:"signed_importance"`
	FeatureValue float64 `json:"feature_value"`
	// RawValue is the feature before normalization, when known.
	RawValue *float64 `json:"raw_value,omitempty"`
}

// Result is an attribution of one prediction.
type Result struct {
	Method Method      `json:"method"`
	Task   domain.Task `json:"task"`

	TopFeatures []Contribution `json:"feature_importance"`
	Importances []float64      `json:"raw_importance_scores"`
	Normalized  []float64      `json:"normalized_importance_scores,omitempty"`

	ExpectedValue float64 `json:"expected_value"`
	Prediction    float64 `json:"prediction"`
	Probability   float64 `json:"prediction_probability"`
	Logit         float64 `json:"prediction_logit"`
	AdditivityGap float64 `json:"max_additivity_diff"`

	// Error is set on placeholder results when attribution failed.
	Error string `json:"error,omitempty"`
}

// Failed builds the placeholder returned in place of an attribution that
// could not be computed.
func Failed(method Method, task domain.Task, probability float64, err error) *Result {
	return &Result{
		Method:      method,
		Task:        task,
		TopFeatures: []Contribution{{Index: -1, FeatureName: "Unknown"}},
		Probability: probability,
		Error:       err.Error(),
	}
}

// Explainer attributes the model output for x to its features.
type Explainer interface {
	Method() Method
	Explain(ctx context.Context, task domain.Task, x []float64, names []string) (*Result, error)
}

// AttachRaw records raw feature values on the ranked contributions.
func (r *Result) AttachRaw(raw []float64) {
	for i := range r.TopFeatures {
		idx := r.TopFeatures[i].Index
		if idx >= 0 && idx < len(raw) {
			v := raw[idx]
			r.TopFeatures[i].RawValue = &v
		}
	}
}

// rank orders features by absolute importance, descending, and keeps the
// first TopK. Ties keep feature order.
func rank(importances, x []float64, names []string) []Contribution {
	all := make([]Contribution, len(importances))
	for i, imp := range importances {
		all[i] = Contribution{
			Index:        i,
			FeatureName:  featureName(names, i),
			Importance:   imp,
			FeatureValue: x[i],
		}
	}
	sort.SliceStable(all, func(a, b int) bool {
		return math.Abs(all[a].Importance) > math.Abs(all[b].Importance)
	})
	if len(all) > TopK {
		all = all[:TopK]
	}
	return all
}

func featureName(names []string, i int) string {
	if i < len(names) && names[i] != "" {
		return names[i]
	}
	return fmt.Sprintf("feature_%d", i)
}

// New builds the explainer for method. bg is only used by the Shapley
// strategy.
func New(method Method, m Predictor, bg *Background, opts ShapleyOptions) Explainer {
	if method == MethodShapley {
		if bg == nil {
			bg = NewBackground(MaxBackground, opts.Seed)
		}
		return NewShapley(m, bg, opts)
	}
	return NewGradient(m)
}
