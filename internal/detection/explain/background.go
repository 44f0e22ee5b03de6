package explain

import (
	"math/rand"
	"sync"

	"github.com/vietddude/scamradar/internal/core/domain"
)

// MaxBackground caps the reference set of the Shapley strategy.
const MaxBackground = 100

type reservoir struct {
	rows    [][]float64
	seen    int
	version uint64
}

// Background keeps a uniform sample of observed model inputs per task.
// It is safe for concurrent use.
type Background struct {
	mu    sync.Mutex
	size  int
	tasks map[domain.Task]*reservoir
	rng   *rand.Rand
}

// NewBackground creates a sampler holding at most size rows per task,
// capped at MaxBackground.
func NewBackground(size int, seed int64) *Background {
	if size <= 0 || size > MaxBackground {
		size = MaxBackground
	}
	return &Background{
		size:  size,
		tasks: make(map[domain.Task]*reservoir),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Observe offers a model input to the sample.
func (b *Background) Observe(task domain.Task, x []float64) {
	row := append([]float64(nil), x...)

	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.tasks[task]
	if r == nil {
		r = &reservoir{}
		b.tasks[task] = r
	}
	r.seen++
	if len(r.rows) < b.size {
		r.rows = append(r.rows, row)
		r.version++
		return
	}
	if j := b.rng.Intn(r.seen); j < b.size {
		r.rows[j] = row
		r.version++
	}
}

// Snapshot returns a copy of the sample for task and its version. The
// version changes whenever the sample does.
func (b *Background) Snapshot(task domain.Task) ([][]float64, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.tasks[task]
	if r == nil {
		return nil, 0
	}
	rows := make([][]float64, len(r.rows))
	copy(rows, r.rows)
	return rows, r.version
}

// Len returns the sample size for task.
func (b *Background) Len(task domain.Task) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.tasks[task]; r != nil {
		return len(r.rows)
	}
	return 0
}
