package explain

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/model"
	"github.com/vietddude/scamradar/internal/detection/model/modeltest"
)

// linearModel is linear for non-negative inputs: identity backbone, then a
// single dense head.
func linearModel(t *testing.T, w []float64, bias float64) *model.Model {
	t.Helper()
	dim := len(w)
	ident := make([][]float64, dim)
	for i := range ident {
		ident[i] = make([]float64, dim)
		ident[i][i] = 1
	}
	m, err := model.New(model.Weights{
		InputDim: dim,
		Backbone: []model.Linear{{Weight: ident, Bias: make([]float64, dim)}},
		Heads: map[domain.Task][]model.Linear{
			domain.TaskAccount: {{Weight: [][]float64{w}, Bias: []float64{bias}}},
		},
	})
	require.NoError(t, err)
	return m
}

type countingPredictor struct {
	Predictor
	forwards atomic.Int64
}

func (c *countingPredictor) Forward(task domain.Task, x []float64) (float64, error) {
	c.forwards.Add(1)
	return c.Predictor.Forward(task, x)
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", MethodGradient, false},
		{"gradient", MethodGradient, false},
		{"shapley", MethodShapley, false},
		{"shap", MethodShapley, false},
		{"lime", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMethod(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestRank(t *testing.T) {
	imp := []float64{0.1, -0.9, 0.3, 0, 0.5, -0.3, 0.05}
	x := []float64{1, 2, 3, 4, 5, 6, 7}
	top := rank(imp, x, []string{"a", "b", "c"})

	require.Len(t, top, TopK)
	assert.Equal(t, []int{1, 4, 2, 5, 0}, []int{top[0].Index, top[1].Index, top[2].Index, top[3].Index, top[4].Index})
	assert.Equal(t, "b", top[0].FeatureName)
	assert.Equal(t, -0.9, top[0].Importance, "sign is kept")
	assert.Equal(t, "feature_4", top[1].FeatureName)
	assert.Equal(t, 5.0, top[1].FeatureValue)
}

func TestGradient(t *testing.T) {
	m := linearModel(t, []float64{3, -1, 0, 2, 0.5, 1}, 0.2)
	x := []float64{1, 1, 1, 1, 1, 1}

	res, err := NewGradient(m).Explain(context.Background(), domain.TaskAccount, x, nil)
	require.NoError(t, err)

	assert.Equal(t, MethodGradient, res.Method)
	assert.InDeltaSlice(t, []float64{3, 1, 0, 2, 0.5, 1}, res.Importances, 1e-12)

	var sum float64
	for _, v := range res.Normalized {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-12)

	assert.InDelta(t, 5.7, res.Logit, 1e-12)
	assert.InDelta(t, model.Sigmoid(5.7), res.Probability, 1e-12)
	assert.Equal(t, res.Probability, res.ExpectedValue)
	require.Len(t, res.TopFeatures, TopK)
	assert.Equal(t, 0, res.TopFeatures[0].Index)
	assert.Equal(t, 3, res.TopFeatures[1].Index)
}

func TestGradient_ZeroSumIsGuarded(t *testing.T) {
	m := linearModel(t, []float64{0, 0, 0}, 1)
	res, err := NewGradient(m).Explain(context.Background(), domain.TaskAccount, []float64{1, 2, 3}, nil)
	require.NoError(t, err)
	for _, v := range res.Normalized {
		assert.False(t, math.IsNaN(v))
		assert.Zero(t, v)
	}
}

func TestGradient_UnknownTask(t *testing.T) {
	m := linearModel(t, []float64{1}, 0)
	_, err := NewGradient(m).Explain(context.Background(), domain.TaskTransaction, []float64{1}, nil)
	assert.ErrorIs(t, err, model.ErrUnknownTask)
}

func TestShapley_LinearModelIsExact(t *testing.T) {
	w := []float64{2, -1, 0.5}
	m := linearModel(t, w, 0.1)

	bg := NewBackground(10, 1)
	bg.Observe(domain.TaskAccount, []float64{1, 1, 1})
	bg.Observe(domain.TaskAccount, []float64{3, 1, 5})

	x := []float64{4, 2, 1}
	res, err := NewShapley(m, bg, ShapleyOptions{Permutations: 4, Seed: 9}).
		Explain(context.Background(), domain.TaskAccount, x, nil)
	require.NoError(t, err)

	// phi_j = w_j * (x_j - mean(b_j)) for a linear model
	means := []float64{2, 1, 3}
	for j := range w {
		assert.InDelta(t, w[j]*(x[j]-means[j]), res.Importances[j], 1e-9, "feature %d", j)
	}
}

func TestShapley_Additivity(t *testing.T) {
	m := modeltest.New(15, 16, 11)
	bg := NewBackground(20, 2)
	for i := 0; i < 30; i++ {
		row := make([]float64, 15)
		for j := range row {
			row[j] = math.Sin(float64(i*15+j)) * 2
		}
		bg.Observe(domain.TaskTransaction, row)
	}

	x := make([]float64, 15)
	for j := range x {
		x[j] = math.Cos(float64(j))
	}

	for _, sigmoid := range []bool{false, true} {
		s := NewShapley(m, bg, ShapleyOptions{Permutations: 3, Seed: 5, Sigmoid: sigmoid})
		res, err := s.Explain(context.Background(), domain.TaskTransaction, x, nil)
		require.NoError(t, err)

		var sum float64
		for _, v := range res.Importances {
			sum += v
		}
		assert.Less(t, math.Abs(res.ExpectedValue+sum-res.Prediction), 1e-9)
		assert.Less(t, res.AdditivityGap, 1e-9)
		assert.Len(t, res.Importances, 15)
		assert.Len(t, res.TopFeatures, TopK)
		if sigmoid {
			assert.Equal(t, res.Probability, res.Prediction)
		} else {
			assert.Equal(t, res.Logit, res.Prediction)
		}
	}
}

// driftingPredictor adds one unit per call, so repeated evaluations of the
// same input disagree.
type driftingPredictor struct {
	Predictor
	calls atomic.Int64
}

func (d *driftingPredictor) Forward(task domain.Task, x []float64) (float64, error) {
	z, err := d.Predictor.Forward(task, x)
	return z + float64(d.calls.Add(1)), err
}

func TestShapley_AdditivityGapIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	dp := &driftingPredictor{Predictor: linearModel(t, []float64{1, 2}, 0)}
	s := NewShapley(dp, NewBackground(1, 0), ShapleyOptions{Permutations: 1})
	s.log = slog.New(slog.NewTextHandler(&buf, nil))

	res, err := s.Explain(context.Background(), domain.TaskAccount, []float64{1, 1}, nil)
	require.NoError(t, err)
	require.NotNil(t, res)

	// baseline at call 1, prediction at call 2, the walk over calls 3..5
	assert.InDelta(t, 1.0, res.AdditivityGap, 1e-9)
	assert.Greater(t, res.AdditivityGap, minTolerance)
	assert.Len(t, res.Importances, 2)
	assert.Contains(t, buf.String(), "additivity check failed")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestShapley_AdditivityWithinToleranceIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	s := NewShapley(linearModel(t, []float64{1, 2}, 0), NewBackground(1, 0), ShapleyOptions{Permutations: 2})
	s.log = slog.New(slog.NewTextHandler(&buf, nil))

	res, err := s.Explain(context.Background(), domain.TaskAccount, []float64{1, 1}, nil)
	require.NoError(t, err)
	assert.Less(t, res.AdditivityGap, minTolerance)
	assert.Empty(t, buf.String())
}

func TestShapley_EmptyBackgroundUsesZeroBaseline(t *testing.T) {
	m := linearModel(t, []float64{1, 2}, 0.5)
	res, err := NewShapley(m, NewBackground(5, 0), ShapleyOptions{}).
		Explain(context.Background(), domain.TaskAccount, []float64{1, 1}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.ExpectedValue, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 2}, res.Importances, 1e-12)
}

func TestShapley_BaselineCachedUntilBackgroundChanges(t *testing.T) {
	base := linearModel(t, []float64{1, 1}, 0)
	cp := &countingPredictor{Predictor: base}
	bg := NewBackground(5, 0)
	bg.Observe(domain.TaskAccount, []float64{1, 1})
	s := NewShapley(cp, bg, ShapleyOptions{Permutations: 1})

	first, err := s.baselineFor(domain.TaskAccount, 2, false)
	require.NoError(t, err)
	calls := cp.forwards.Load()
	again, err := s.baselineFor(domain.TaskAccount, 2, false)
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, calls, cp.forwards.Load())

	prob, err := s.baselineFor(domain.TaskAccount, 2, true)
	require.NoError(t, err)
	assert.NotSame(t, first, prob, "output transform is part of the key")

	bg.Observe(domain.TaskAccount, []float64{3, 3})
	rebuilt, err := s.baselineFor(domain.TaskAccount, 2, false)
	require.NoError(t, err)
	assert.NotSame(t, first, rebuilt)
	assert.InDelta(t, 4, rebuilt.expected, 1e-12)
}

func TestShapley_ContextCancelled(t *testing.T) {
	m := linearModel(t, []float64{1}, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewShapley(m, NewBackground(1, 0), ShapleyOptions{}).Explain(ctx, domain.TaskAccount, []float64{1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackground_Reservoir(t *testing.T) {
	bg := NewBackground(3, 4)
	for i := 0; i < 50; i++ {
		bg.Observe(domain.TaskAccount, []float64{float64(i)})
	}
	rows, version := bg.Snapshot(domain.TaskAccount)
	assert.Len(t, rows, 3)
	assert.Equal(t, 3, bg.Len(domain.TaskAccount))
	assert.NotZero(t, version)
	assert.Zero(t, bg.Len(domain.TaskTransaction))

	assert.Equal(t, MaxBackground, NewBackground(1000, 0).size)
}

func TestAttachRaw(t *testing.T) {
	res := &Result{TopFeatures: []Contribution{{Index: 2}, {Index: 0}}}
	res.AttachRaw([]float64{10, 20, 30})
	require.NotNil(t, res.TopFeatures[0].RawValue)
	assert.Equal(t, 30.0, *res.TopFeatures[0].RawValue)
	assert.Equal(t, 10.0, *res.TopFeatures[1].RawValue)
}

func TestFailed(t *testing.T) {
	res := Failed(MethodShapley, domain.TaskAccount, 0.7, errors.New("boom"))
	require.Len(t, res.TopFeatures, 1)
	assert.Equal(t, "Unknown", res.TopFeatures[0].FeatureName)
	assert.Equal(t, "boom", res.Error)
	assert.Equal(t, 0.7, res.Probability)

	// raw values are never attached to the placeholder entry
	res.AttachRaw([]float64{1, 2})
	assert.Nil(t, res.TopFeatures[0].RawValue)
}

func TestNew(t *testing.T) {
	m := linearModel(t, []float64{1}, 0)
	assert.Equal(t, MethodGradient, New(MethodGradient, m, nil, ShapleyOptions{}).Method())
	assert.Equal(t, MethodShapley, New(MethodShapley, m, nil, ShapleyOptions{}).Method())
}
