// Package normalize scales raw feature vectors before inference.
//
// Precedence: values above LogThreshold are log-compressed first; training
// statistics are used when they match the vector length; otherwise a batch
// is standardized with its own statistics and a lone sample is only clipped.
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/vietddude/scamradar/internal/core/domain"
)

const (
	// LogThreshold marks values that are replaced by log1p.
	LogThreshold = 1e10
	// MinStd replaces smaller standard deviations by 1.
	MinStd = 1e-8

	clipLow   = -5.0
	clipHigh  = 15.0
	clipSigma = 3.0
)

// Stats are per-feature population statistics.
type Stats struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fits reports whether the statistics apply to vectors of length n.
func (s *Stats) Fits(n int) bool {
	return s != nil && len(s.Mean) == n && len(s.Std) == n
}

// TrainingStats holds statistics per task, as stored in the training
// artifact: {"account": {"mean": [...], "std": [...]}, "transaction": {...}}.
type TrainingStats map[domain.Task]*Stats

// LoadStats reads a training statistics artifact.
func LoadStats(path string) (TrainingStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training statistics: %w", err)
	}
	var stats TrainingStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("parse training statistics: %w", err)
	}
	return stats, nil
}

// Normalizer applies the scaling policy with optional training statistics.
type Normalizer struct {
	stats TrainingStats
	log   *slog.Logger
}

// New creates a normalizer. stats may be nil.
func New(stats TrainingStats) *Normalizer {
	return &Normalizer{
		stats: stats,
		log:   slog.Default().With("component", "normalizer"),
	}
}

// Stats returns the statistics used for task when they fit vectors of
// length n, nil otherwise.
func (n *Normalizer) Stats(task domain.Task, dim int) *Stats {
	s := n.stats[task]
	if s == nil {
		return nil
	}
	if !s.Fits(dim) {
		n.log.Debug("training statistics do not fit, using fallback",
			"task", task, "expected", dim, "mean", len(s.Mean), "std", len(s.Std))
		return nil
	}
	return s
}

// Normalize scales a single vector for task.
func (n *Normalizer) Normalize(task domain.Task, v []float64) []float64 {
	return Transform([][]float64{v}, n.Stats(task, len(v)))[0]
}

// NormalizeBatch scales several vectors of equal length for task.
func (n *Normalizer) NormalizeBatch(task domain.Task, rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return nil
	}
	return Transform(rows, n.Stats(task, len(rows[0])))
}

// Transform applies the full policy to rows. stats must fit the row length
// or be nil. Input rows are not modified.
func Transform(rows [][]float64, stats *Stats) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = LogCompress(r)
	}

	switch {
	case len(rows) == 0:
		return out
	case stats.Fits(len(out[0])):
		for _, r := range out {
			standardize(r, stats.Mean, stats.Std)
		}
	case len(out) == 1:
		for j, x := range out[0] {
			out[0][j] = clamp(x, clipLow, clipHigh)
		}
	default:
		sampleStandardize(out)
	}
	return out
}

// LogCompress returns a copy of v with every value above LogThreshold
// replaced by log1p of itself.
func LogCompress(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > LogThreshold {
			x = math.Log1p(x)
		}
		out[i] = x
	}
	return out
}

func standardize(v, mean, std []float64) {
	for i := range v {
		v[i] = (v[i] - mean[i]) / safeStd(std[i])
	}
}

// sampleStandardize clips each column with a positive maximum and spread to
// three standard deviations, then standardizes it with its own statistics.
func sampleStandardize(rows [][]float64) {
	n, dim := len(rows), len(rows[0])
	m := mat.NewDense(n, dim, nil)
	for i, r := range rows {
		m.SetRow(i, r)
	}

	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, m)
		mu, s := meanStd(col)
		if maxOf(col) > 0 && s > 0 {
			for i := range col {
				col[i] = clamp(col[i], mu-clipSigma*s, mu+clipSigma*s)
			}
			mu, s = meanStd(col)
		}
		for i := range col {
			col[i] = (col[i] - mu) / safeStd(s)
		}
		m.SetCol(j, col)
	}

	for i, r := range rows {
		mat.Row(r, i, m)
	}
}

// meanStd returns the population mean and standard deviation of xs.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) < 2 {
		return stat.Mean(xs, nil), 0
	}
	return stat.PopMeanStdDev(xs, nil)
}

func maxOf(xs []float64) float64 {
	return floats.Max(xs)
}

func safeStd(s float64) float64 {
	if s > MinStd {
		return s
	}
	return 1
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}
