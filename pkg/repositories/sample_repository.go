package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

// SampleIngest is one observed raw value with its occurrence count.
type SampleIngest struct {
	RawValue string `json:"raw_value"`
	Count    int    `json:"count"`
}

// SampleRepository provides data access for aggregated source samples.
type SampleRepository interface {
	// UpsertBatch folds observed values into the sample store. Counts are
	// additive across ingests; last_seen_at always advances.
	UpsertBatch(ctx context.Context, connectionID uuid.UUID, table, field string, samples []SampleIngest) error
	// ListByField lists samples for a connection. Empty table or field skips
	// that filter.
	ListByField(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.SourceSample, error)
	DeleteByField(ctx context.Context, connectionID uuid.UUID, table, field string) error
}

type sampleRepository struct {
	db database.Querier
}

// NewSampleRepository creates a new SampleRepository.
func NewSampleRepository(db database.Querier) SampleRepository {
	return &sampleRepository{db: db}
}

var _ SampleRepository = (*sampleRepository)(nil)

func (r *sampleRepository) UpsertBatch(ctx context.Context, connectionID uuid.UUID, table, field string, samples []SampleIngest) error {
	query := `
		INSERT INTO engine_source_samples (
			connection_id, source_table, source_field, raw_value, occurrence_count, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (connection_id, source_table, source_field, raw_value)
		DO UPDATE SET
			occurrence_count = engine_source_samples.occurrence_count + EXCLUDED.occurrence_count,
			last_seen_at = now()`

	for _, s := range samples {
		count := s.Count
		if count < 1 {
			count = 1
		}
		if _, err := r.db.Exec(ctx, query, connectionID, table, field, s.RawValue, count); err != nil {
			return fmt.Errorf("failed to upsert sample %q: %w", s.RawValue, err)
		}
	}

	return nil
}

func (r *sampleRepository) ListByField(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.SourceSample, error) {
	query := `
		SELECT id, connection_id, source_table, source_field, raw_value,
		       occurrence_count, last_seen_at
		FROM engine_source_samples
		WHERE connection_id = $1`
	args := []any{connectionID}
	if table != "" {
		args = append(args, table)
		query += fmt.Sprintf(" AND source_table = $%d", len(args))
	}
	if field != "" {
		args = append(args, field)
		query += fmt.Sprintf(" AND source_field = $%d", len(args))
	}
	query += ` ORDER BY source_table, source_field, occurrence_count DESC, raw_value`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.SourceSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}

	return samples, nil
}

func (r *sampleRepository) DeleteByField(ctx context.Context, connectionID uuid.UUID, table, field string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM engine_source_samples
		 WHERE connection_id = $1 AND source_table = $2 AND source_field = $3`,
		connectionID, table, field)
	if err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}

func scanSample(row pgx.Row) (*models.SourceSample, error) {
	var s models.SourceSample

	err := row.Scan(
		&s.ID,
		&s.ConnectionID,
		&s.SourceTable,
		&s.SourceField,
		&s.RawValue,
		&s.OccurrenceCount,
		&s.LastSeenAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sample: %w", err)
	}

	return &s, nil
}
