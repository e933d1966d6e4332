package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// maxPerMethod bounds how many observations are retained per method.
const maxPerMethod = 100

// MemoryStorage keeps observations in process memory. Used for db-less runs
// and tests.
type MemoryStorage struct {
	observations map[string][]*domain.Observation // newest first
	mu           sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		observations: make(map[string][]*domain.Observation),
	}
}

// ObservationRepo implements storage.ObservationRepository in memory.
type ObservationRepo struct {
	store *MemoryStorage
}

func NewObservationRepo(store *MemoryStorage) *ObservationRepo {
	return &ObservationRepo{store: store}
}

func (r *ObservationRepo) Save(ctx context.Context, obs *domain.Observation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	list := append([]*domain.Observation{obs}, r.store.observations[obs.Method]...)
	if len(list) > maxPerMethod {
		list = list[:maxPerMethod]
	}
	r.store.observations[obs.Method] = list
	return nil
}

func (r *ObservationRepo) Recent(
	ctx context.Context,
	methodName string,
	limit int,
) ([]*domain.Observation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	list := r.store.observations[methodName]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.Observation, len(list))
	copy(out, list)
	return out, nil
}

func (r *ObservationRepo) LastByMethod(
	ctx context.Context,
) (map[string]*domain.Observation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]*domain.Observation, len(r.store.observations))
	for m, list := range r.store.observations {
		if len(list) > 0 {
			out[m] = list[0]
		}
	}
	return out, nil
}

func (r *ObservationRepo) DeleteOlderThan(
	ctx context.Context,
	threshold time.Time,
) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var removed int64
	for m, list := range r.store.observations {
		kept := list[:0]
		for _, obs := range list {
			if obs.ObservedAt.Before(threshold) {
				removed++
				continue
			}
			kept = append(kept, obs)
		}
		if len(kept) == 0 {
			delete(r.store.observations, m)
			continue
		}
		r.store.observations[m] = kept
	}
	return removed, nil
}
