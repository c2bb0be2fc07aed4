// Package worker contains background workers started alongside the
// HTTP server and stopped via context cancellation.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// UsageRecomputer recomputes storage usage counters from the evidence
// file rows, returning the number of corrected counters.
type UsageRecomputer interface {
	RecomputeStorageUsage(ctx context.Context) (int64, error)
}

// UsageCoordinator periodically reconciles per-initiative storage
// counters against the actual file rows. Best-effort decrements during
// evidence deletion can drift; the sweep corrects them.
type UsageCoordinator struct {
	store    UsageRecomputer
	interval time.Duration
}

// NewUsageCoordinator creates a coordinator sweeping at the given interval.
func NewUsageCoordinator(store UsageRecomputer, interval time.Duration) *UsageCoordinator {
	return &UsageCoordinator{
		store:    store,
		interval: interval,
	}
}

// Run executes the reconciliation loop until the context is cancelled.
// The first sweep runs one full interval after startup.
func (c *UsageCoordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *UsageCoordinator) sweep(ctx context.Context) {
	start := time.Now()
	corrected, err := c.store.RecomputeStorageUsage(ctx)
	if err != nil {
		slog.Error("usage recompute failed", "error", err)
		return
	}
	if corrected > 0 {
		slog.Info("usage counters corrected",
			"corrected", corrected,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
