package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

// FieldMappingRepository provides data access for source field mappings.
type FieldMappingRepository interface {
	Create(ctx context.Context, mapping *models.SourceFieldMapping) error
	Update(ctx context.Context, mapping *models.SourceFieldMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SourceFieldMapping, error)
	ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*models.SourceFieldMapping, error)
}

type fieldMappingRepository struct {
	db database.Querier
}

// NewFieldMappingRepository creates a new FieldMappingRepository.
func NewFieldMappingRepository(db database.Querier) FieldMappingRepository {
	return &fieldMappingRepository{db: db}
}

var _ FieldMappingRepository = (*fieldMappingRepository)(nil)

func (r *fieldMappingRepository) Create(ctx context.Context, mapping *models.SourceFieldMapping) error {
	now := time.Now()

	query := `
		INSERT INTO engine_field_mappings (
			connection_id, source_table, source_field, ref_dimension, description,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		mapping.ConnectionID,
		mapping.SourceTable,
		mapping.SourceField,
		mapping.RefDimension,
		nullString(mapping.Description),
		now,
		now,
	).Scan(&mapping.ID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create field mapping: %w", err)
	}

	return nil
}

func (r *fieldMappingRepository) Update(ctx context.Context, mapping *models.SourceFieldMapping) error {
	query := `
		UPDATE engine_field_mappings
		SET ref_dimension = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING connection_id, source_table, source_field, updated_at`

	err := r.db.QueryRow(ctx, query,
		mapping.ID,
		mapping.RefDimension,
		nullString(mapping.Description),
	).Scan(&mapping.ConnectionID, &mapping.SourceTable, &mapping.SourceField, &mapping.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update field mapping: %w", err)
	}

	return nil
}

func (r *fieldMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_field_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete field mapping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *fieldMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceFieldMapping, error) {
	query := fieldMappingSelect + ` WHERE id = $1`

	mapping, err := scanFieldMapping(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (r *fieldMappingRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*models.SourceFieldMapping, error) {
	query := fieldMappingSelect + ` WHERE connection_id = $1 ORDER BY source_table, source_field`

	rows, err := r.db.Query(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query field mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.SourceFieldMapping
	for rows.Next() {
		mapping, err := scanFieldMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, mapping)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating field mappings: %w", err)
	}

	return mappings, nil
}

const fieldMappingSelect = `
	SELECT id, connection_id, source_table, source_field, ref_dimension, description,
	       created_at, updated_at
	FROM engine_field_mappings`

func scanFieldMapping(row pgx.Row) (*models.SourceFieldMapping, error) {
	var m models.SourceFieldMapping
	var description *string

	err := row.Scan(
		&m.ID,
		&m.ConnectionID,
		&m.SourceTable,
		&m.SourceField,
		&m.RefDimension,
		&description,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan field mapping: %w", err)
	}

	m.Description = derefString(description)

	return &m, nil
}
