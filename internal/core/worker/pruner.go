// Package worker holds background maintenance loops for the poller.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/methodwatch/internal/infra/storage"
)

// Pruner deletes old observations based on retention policy.
type Pruner struct {
	retention time.Duration
	repo      storage.ObservationRepository
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.ObservationRepository, log *slog.Logger) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		log:       log,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check interval: 10% of the retention period, clamped to [1m, 1h]
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	threshold := time.Now().Add(-p.retention)

	removed, err := p.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		p.log.Error("Failed to prune observations", "error", err)
		return
	}
	if removed > 0 {
		p.log.Info("Pruned observations", "removed", removed, "threshold", threshold)
	}
}
