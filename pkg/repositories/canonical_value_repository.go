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

// CanonicalValueRepository provides data access for canonical reference values.
type CanonicalValueRepository interface {
	Create(ctx context.Context, value *models.CanonicalValue) error
	Update(ctx context.Context, value *models.CanonicalValue) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CanonicalValue, error)
	List(ctx context.Context, dimension string) ([]*models.CanonicalValue, error)
	// FindByLabel resolves a value by its case-normalized label within a
	// dimension. Returns nil when no value matches.
	FindByLabel(ctx context.Context, dimension, label string) (*models.CanonicalValue, error)
	WithTx(q database.Querier) CanonicalValueRepository
}

type canonicalValueRepository struct {
	db database.Querier
}

// NewCanonicalValueRepository creates a new CanonicalValueRepository.
func NewCanonicalValueRepository(db database.Querier) CanonicalValueRepository {
	return &canonicalValueRepository{db: db}
}

var _ CanonicalValueRepository = (*canonicalValueRepository)(nil)

func (r *canonicalValueRepository) WithTx(q database.Querier) CanonicalValueRepository {
	return &canonicalValueRepository{db: q}
}

func (r *canonicalValueRepository) Create(ctx context.Context, value *models.CanonicalValue) error {
	attrs, err := jsonbValue(value.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	now := time.Now()

	query := `
		INSERT INTO engine_canonical_values (
			dimension, canonical_label, description, attributes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		value.Dimension,
		value.CanonicalLabel,
		nullString(value.Description),
		attrs,
		now,
		now,
	).Scan(&value.ID, &value.CreatedAt, &value.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create canonical value: %w", err)
	}

	return nil
}

func (r *canonicalValueRepository) Update(ctx context.Context, value *models.CanonicalValue) error {
	attrs, err := jsonbValue(value.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		UPDATE engine_canonical_values
		SET canonical_label = $2, description = $3, attributes = $4, updated_at = now()
		WHERE id = $1
		RETURNING dimension, updated_at`

	err = r.db.QueryRow(ctx, query,
		value.ID,
		value.CanonicalLabel,
		nullString(value.Description),
		attrs,
	).Scan(&value.Dimension, &value.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		if database.IsUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to update canonical value: %w", err)
	}

	return nil
}

func (r *canonicalValueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_canonical_values WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete canonical value: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *canonicalValueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CanonicalValue, error) {
	query := canonicalValueSelect + ` WHERE id = $1`

	value, err := scanCanonicalValue(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return value, nil
}

func (r *canonicalValueRepository) List(ctx context.Context, dimension string) ([]*models.CanonicalValue, error) {
	query := canonicalValueSelect
	var args []any
	if dimension != "" {
		query += ` WHERE dimension = $1`
		args = append(args, dimension)
	}
	query += ` ORDER BY dimension, canonical_label`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query canonical values: %w", err)
	}
	defer rows.Close()

	var values []*models.CanonicalValue
	for rows.Next() {
		value, err := scanCanonicalValue(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating canonical values: %w", err)
	}

	return values, nil
}

func (r *canonicalValueRepository) FindByLabel(ctx context.Context, dimension, label string) (*models.CanonicalValue, error) {
	query := canonicalValueSelect + ` WHERE dimension = $1 AND lower(canonical_label) = lower($2)`

	value, err := scanCanonicalValue(r.db.QueryRow(ctx, query, dimension, label))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // No collision
		}
		return nil, err
	}
	return value, nil
}

const canonicalValueSelect = `
	SELECT id, dimension, canonical_label, description, attributes, created_at, updated_at
	FROM engine_canonical_values`

func scanCanonicalValue(row pgx.Row) (*models.CanonicalValue, error) {
	var v models.CanonicalValue
	var description *string
	var attrs []byte

	err := row.Scan(
		&v.ID,
		&v.Dimension,
		&v.CanonicalLabel,
		&description,
		&attrs,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan canonical value: %w", err)
	}

	v.Description = derefString(description)
	if err := jsonUnmarshal(attrs, &v.Attributes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	if v.Attributes == nil {
		v.Attributes = map[string]any{}
	}

	return &v, nil
}
