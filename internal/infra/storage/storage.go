// Package storage defines the persistence ports for observed method
// results.
package storage

import (
	"context"
	"time"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// ObservationRepository persists settled invocation results.
type ObservationRepository interface {
	// Save writes one observation.
	Save(ctx context.Context, obs *domain.Observation) error
	// Recent returns up to limit observations for a method, newest first.
	Recent(ctx context.Context, methodName string, limit int) ([]*domain.Observation, error)
	// LastByMethod returns the newest observation per method.
	LastByMethod(ctx context.Context) (map[string]*domain.Observation, error)
	// DeleteOlderThan removes observations observed before the threshold and
	// reports how many were removed.
	DeleteOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}
