package normalize

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/scamradar/internal/core/domain"
)

func seq(n int, f func(i int) float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = f(i)
	}
	return v
}

func TestRoundTripWithTrainingStats(t *testing.T) {
	stats := &Stats{
		Mean: seq(15, func(i int) float64 { return float64(i) * 3 }),
		Std:  seq(15, func(i int) float64 { return float64(i) + 0.5 }),
	}
	stats.Std[4] = 0 // guarded to 1
	raw := seq(15, func(i int) float64 { return float64(i*i) - 7 })

	n := New(TrainingStats{domain.TaskAccount: stats})
	scaled := n.Normalize(domain.TaskAccount, raw)

	for i := range raw {
		std := stats.Std[i]
		if std <= MinStd {
			std = 1
		}
		assert.InDelta(t, raw[i], scaled[i]*std+stats.Mean[i], 1e-9)
	}
}

func TestSingleSampleStatsDifferFromFallback(t *testing.T) {
	stats := &Stats{
		Mean: seq(15, func(int) float64 { return 2 }),
		Std:  seq(15, func(int) float64 { return 4 }),
	}
	raw := seq(15, func(i int) float64 { return float64(i) })

	withStats := New(TrainingStats{domain.TaskTransaction: stats}).Normalize(domain.TaskTransaction, raw)
	fallback := New(nil).Normalize(domain.TaskTransaction, raw)

	assert.NotEqual(t, withStats, fallback)
	assert.Equal(t, raw, fallback, "values already within clip range")
}

func TestSingleSampleFallbackClips(t *testing.T) {
	raw := []float64{-100, -5, 0, 14.9, 16, 2e10}
	got := New(nil).Normalize(domain.TaskAccount, raw)

	assert.Equal(t, []float64{-5, -5, 0, 14.9, 15, 15}, got)
	assert.Equal(t, -100.0, raw[0], "input must not be mutated")
}

func TestLogCompression(t *testing.T) {
	v := LogCompress([]float64{1e10, 1e10 + 1, 1e18, -1e18})
	assert.Equal(t, 1e10, v[0])
	assert.InDelta(t, math.Log1p(1e10+1), v[1], 1e-12)
	assert.InDelta(t, math.Log1p(1e18), v[2], 1e-12)
	assert.Equal(t, -1e18, v[3])
}

func TestLogCompressionBeforeTrainingStats(t *testing.T) {
	stats := &Stats{Mean: []float64{0, 0}, Std: []float64{1, 1}}
	got := Transform([][]float64{{1e12, 3}}, stats)
	assert.InDelta(t, math.Log1p(1e12), got[0][0], 1e-9)
	assert.Equal(t, 3.0, got[0][1])
}

func TestMismatchedStatsFallBack(t *testing.T) {
	bad := &Stats{Mean: []float64{1, 2, 3}, Std: []float64{1, 1, 1}}
	n := New(TrainingStats{domain.TaskAccount: bad})

	raw := seq(15, func(i int) float64 { return float64(i) })
	assert.Nil(t, n.Stats(domain.TaskAccount, 15))
	assert.Equal(t, New(nil).Normalize(domain.TaskAccount, raw), n.Normalize(domain.TaskAccount, raw))
}

func TestBatchFallbackStandardizes(t *testing.T) {
	rows := [][]float64{
		{1, 10, 0},
		{2, 10, 0},
		{3, 10, 0},
		{4, 10, 0},
	}
	got := New(nil).NormalizeBatch(domain.TaskAccount, rows)
	require.Len(t, got, 4)

	var sum, sq float64
	for _, r := range got {
		sum += r[0]
		sq += r[0] * r[0]
		assert.Zero(t, r[1], "constant column centers to zero")
		assert.Zero(t, r[2])
	}
	assert.InDelta(t, 0, sum/4, 1e-12)
	assert.InDelta(t, 1, math.Sqrt(sq/4), 1e-12)
}

func TestBatchFallbackClipsOutliers(t *testing.T) {
	var rows [][]float64
	var col []float64
	for i := 0; i < 18; i++ {
		x := float64(2 * (i % 2))
		rows = append(rows, []float64{x})
		col = append(col, x)
	}
	rows = append(rows, []float64{100})
	col = append(col, 100)

	m, s := meanStd(col)
	unclipped := (100 - m) / s

	got := Transform(rows, nil)
	assert.Less(t, got[18][0], unclipped-1e-4)
}

func TestLoadStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_statistics.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"account": {"mean": [1, 2], "std": [3, 4]},
		"transaction": {"mean": [5], "std": [6]}
	}`), 0o644))

	stats, err := LoadStats(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, stats[domain.TaskAccount].Mean)
	assert.True(t, stats[domain.TaskAccount].Fits(2))
	assert.False(t, stats[domain.TaskTransaction].Fits(2))

	_, err = LoadStats(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
