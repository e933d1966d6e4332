package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// ObservationRepo implements storage.ObservationRepository using PostgreSQL.
type ObservationRepo struct {
	db *DB
}

// NewObservationRepo creates a new PostgreSQL observation repository.
func NewObservationRepo(db *DB) *ObservationRepo {
	return &ObservationRepo{db: db}
}

type observationRow struct {
	ID         uuid.UUID `db:"id"`
	Method     string    `db:"method"`
	Kind       string    `db:"kind"`
	Status     int       `db:"status"`
	LatencyMS  int64     `db:"latency_ms"`
	Payload    []byte    `db:"payload"`
	Err        string    `db:"err"`
	ObservedAt time.Time `db:"observed_at"`
}

func (r observationRow) toDomain() *domain.Observation {
	return &domain.Observation{
		ID:         r.ID,
		Method:     r.Method,
		Kind:       r.Kind,
		Status:     r.Status,
		Latency:    time.Duration(r.LatencyMS) * time.Millisecond,
		Payload:    json.RawMessage(r.Payload),
		Err:        r.Err,
		ObservedAt: r.ObservedAt,
	}
}

// Save writes one observation.
func (r *ObservationRepo) Save(ctx context.Context, obs *domain.Observation) error {
	query := `
		INSERT INTO observations (id, method, kind, status, latency_ms, payload, err, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query,
		obs.ID,
		obs.Method,
		obs.Kind,
		obs.Status,
		obs.Latency.Milliseconds(),
		[]byte(obs.Payload),
		obs.Err,
		obs.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save observation: %w", err)
	}
	return nil
}

// Recent returns up to limit observations for a method, newest first.
func (r *ObservationRepo) Recent(
	ctx context.Context,
	methodName string,
	limit int,
) ([]*domain.Observation, error) {
	query := `
		SELECT id, method, kind, status, latency_ms, payload, err, observed_at
		FROM observations
		WHERE method = $1
		ORDER BY observed_at DESC
		LIMIT $2
	`

	var rows []observationRow
	if err := r.db.SelectContext(ctx, &rows, query, methodName, limit); err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}

	out := make([]*domain.Observation, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// LastByMethod returns the newest observation per method.
func (r *ObservationRepo) LastByMethod(
	ctx context.Context,
) (map[string]*domain.Observation, error) {
	query := `
		SELECT DISTINCT ON (method)
			id, method, kind, status, latency_ms, payload, err, observed_at
		FROM observations
		ORDER BY method, observed_at DESC
	`

	var rows []observationRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query latest observations: %w", err)
	}

	out := make(map[string]*domain.Observation, len(rows))
	for _, row := range rows {
		out[row.Method] = row.toDomain()
	}
	return out, nil
}

// DeleteOlderThan removes observations observed before the threshold.
func (r *ObservationRepo) DeleteOlderThan(
	ctx context.Context,
	threshold time.Time,
) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM observations WHERE observed_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to prune observations: %w", err)
	}
	return res.RowsAffected()
}
