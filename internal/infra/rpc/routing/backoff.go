package routing

import (
	"context"
	"math"
	"time"
)

// BackoffConfig defines the pause between attempts on transient failures.
// The zero value disables waiting.
type BackoffConfig struct {
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultBackoff is used by the explorer fetcher.
var DefaultBackoff = BackoffConfig{
	InitialDelay:    250 * time.Millisecond,
	MaxDelay:        2 * time.Second,
	BackoffMultiple: 2.0,
}

// Delay returns the pause before the given zero-based retry.
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if c.InitialDelay <= 0 {
		return 0
	}
	mult := c.BackoffMultiple
	if mult < 1 {
		mult = 1
	}
	delay := float64(c.InitialDelay) * math.Pow(mult, float64(attempt))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (c BackoffConfig) Wait(ctx context.Context, attempt int) error {
	d := c.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
