package worker

import (
	"context"
	"log/slog"
	"time"
)

// Deleter removes records older than a cutoff.
type Deleter interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Pruner deletes stored detections past the retention period.
type Pruner struct {
	retention time.Duration
	repo      Deleter
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo Deleter) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Interval is how often the pruner runs: a tenth of the retention period,
// clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs one deletion pass.
func (p *Pruner) Prune(ctx context.Context) {
	if p.retention <= 0 {
		return
	}
	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("Failed to prune detections", "cutoff", cutoff, "error", err)
		return
	}
	if n > 0 {
		p.log.Info("Pruned detections", "count", n, "cutoff", cutoff)
	}
}
