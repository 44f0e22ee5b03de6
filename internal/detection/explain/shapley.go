package explain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/model"
)

const (
	defaultPermutations = 16
	minTolerance        = 1e-3
)

// ShapleyOptions configure the sampled Shapley strategy.
type ShapleyOptions struct {
	// Permutations sampled per background row.
	Permutations int
	// Tolerance for the additivity check; never below 1e-3.
	Tolerance float64
	// Sigmoid explains probabilities instead of logits.
	Sigmoid bool
	Seed    int64
}

type baselineKey struct {
	task    domain.Task
	sigmoid bool
}

type baseline struct {
	rows     [][]float64
	version  uint64
	expected float64
}

// Shapley estimates interventional Shapley values by permutation sampling
// against a background set. For every sampled permutation and background
// row the marginal contributions telescope, so the contributions always sum
// to the prediction minus the mean background prediction.
type Shapley struct {
	model      Predictor
	background *Background
	opts       ShapleyOptions

	mu    sync.Mutex
	cache map[baselineKey]*baseline
	rng   *rand.Rand

	log *slog.Logger
}

// NewShapley creates a Shapley explainer drawing its reference set from bg.
func NewShapley(m Predictor, bg *Background, opts ShapleyOptions) *Shapley {
	if opts.Permutations <= 0 {
		opts.Permutations = defaultPermutations
	}
	opts.Tolerance = math.Max(opts.Tolerance, minTolerance)
	return &Shapley{
		model:      m,
		background: bg,
		opts:       opts,
		cache:      make(map[baselineKey]*baseline),
		rng:        rand.New(rand.NewSource(opts.Seed)),
		log:        slog.Default().With("component", "shapley"),
	}
}

// Method implements Explainer.
func (s *Shapley) Method() Method {
	return MethodShapley
}

func (s *Shapley) output(task domain.Task, x []float64, sigmoid bool) (float64, error) {
	z, err := s.model.Forward(task, x)
	if err != nil {
		return 0, err
	}
	if sigmoid {
		return model.Sigmoid(z), nil
	}
	return z, nil
}

// baselineFor returns the cached reference set and its mean output,
// rebuilding it when the background sample changed.
func (s *Shapley) baselineFor(task domain.Task, dim int, sigmoid bool) (*baseline, error) {
	rows, version := s.background.Snapshot(task)
	if len(rows) == 0 {
		rows = [][]float64{make([]float64, dim)}
	}

	key := baselineKey{task: task, sigmoid: sigmoid}
	s.mu.Lock()
	cached := s.cache[key]
	s.mu.Unlock()
	if cached != nil && cached.version == version && len(cached.rows) == len(rows) {
		return cached, nil
	}

	var sum float64
	for _, b := range rows {
		if len(b) != dim {
			return nil, fmt.Errorf("background row has %d features, want %d", len(b), dim)
		}
		f, err := s.output(task, b, sigmoid)
		if err != nil {
			return nil, err
		}
		sum += f
	}
	bl := &baseline{rows: rows, version: version, expected: sum / float64(len(rows))}

	s.mu.Lock()
	s.cache[key] = bl
	s.mu.Unlock()
	return bl, nil
}

func (s *Shapley) permutation(n int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Perm(n)
}

// Explain implements Explainer using the configured output transform.
func (s *Shapley) Explain(ctx context.Context, task domain.Task, x []float64, names []string) (*Result, error) {
	return s.ExplainOutput(ctx, task, x, names, s.opts.Sigmoid)
}

// ExplainOutput attributes either the logit or, with sigmoid set, the
// probability. An additivity gap above the tolerance is logged and
// reported, never returned as an error.
func (s *Shapley) ExplainOutput(
	ctx context.Context,
	task domain.Task,
	x []float64,
	names []string,
	sigmoid bool,
) (*Result, error) {
	dim := len(x)
	bl, err := s.baselineFor(task, dim, sigmoid)
	if err != nil {
		return nil, err
	}

	logit, err := s.model.Forward(task, x)
	if err != nil {
		return nil, err
	}
	pred := logit
	if sigmoid {
		pred = model.Sigmoid(logit)
	}

	phi := make([]float64, dim)
	z := make([]float64, dim)
	samples := 0
	for p := 0; p < s.opts.Permutations; p++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		perm := s.permutation(dim)
		for _, b := range bl.rows {
			copy(z, b)
			prev, err := s.output(task, z, sigmoid)
			if err != nil {
				return nil, err
			}
			for _, j := range perm {
				z[j] = x[j]
				cur, err := s.output(task, z, sigmoid)
				if err != nil {
					return nil, err
				}
				phi[j] += cur - prev
				prev = cur
			}
			samples++
		}
	}
	for j := range phi {
		phi[j] /= float64(samples)
	}

	var sum float64
	for _, v := range phi {
		sum += v
	}
	gap := math.Abs(bl.expected + sum - pred)
	if gap > s.opts.Tolerance {
		s.log.Warn("additivity check failed",
			"task", task,
			"max_diff", gap,
			"tolerance", s.opts.Tolerance,
		)
	}

	return &Result{
		Method:        MethodShapley,
		Task:          task,
		TopFeatures:   rank(phi, x, names),
		Importances:   phi,
		ExpectedValue: bl.expected,
		Prediction:    pred,
		Probability:   model.Sigmoid(logit),
		Logit:         logit,
		AdditivityGap: gap,
	}, nil
}
