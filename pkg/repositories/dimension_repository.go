package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

// DimensionRepository provides data access for the dimension registry.
type DimensionRepository interface {
	Create(ctx context.Context, dim *models.Dimension) error
	Update(ctx context.Context, dim *models.Dimension) error
	Delete(ctx context.Context, code string) error
	GetByCode(ctx context.Context, code string) (*models.Dimension, error)
	List(ctx context.Context) ([]*models.Dimension, error)
	WithTx(q database.Querier) DimensionRepository
}

type dimensionRepository struct {
	db database.Querier
}

// NewDimensionRepository creates a new DimensionRepository.
func NewDimensionRepository(db database.Querier) DimensionRepository {
	return &dimensionRepository{db: db}
}

var _ DimensionRepository = (*dimensionRepository)(nil)

func (r *dimensionRepository) WithTx(q database.Querier) DimensionRepository {
	return &dimensionRepository{db: q}
}

func (r *dimensionRepository) Create(ctx context.Context, dim *models.Dimension) error {
	fields, err := json.Marshal(dim.ExtraFields)
	if err != nil {
		return fmt.Errorf("marshal extra_fields: %w", err)
	}
	if dim.ExtraFields == nil {
		fields = []byte("[]")
	}

	now := time.Now()

	query := `
		INSERT INTO engine_dimensions (code, label, description, extra_fields, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		dim.Code,
		dim.Label,
		nullString(dim.Description),
		fields,
		now,
		now,
	).Scan(&dim.ID, &dim.CreatedAt, &dim.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create dimension: %w", err)
	}

	return nil
}

func (r *dimensionRepository) Update(ctx context.Context, dim *models.Dimension) error {
	fields, err := json.Marshal(dim.ExtraFields)
	if err != nil {
		return fmt.Errorf("marshal extra_fields: %w", err)
	}
	if dim.ExtraFields == nil {
		fields = []byte("[]")
	}

	query := `
		UPDATE engine_dimensions
		SET label = $2, description = $3, extra_fields = $4, updated_at = now()
		WHERE code = $1
		RETURNING id, updated_at`

	err = r.db.QueryRow(ctx, query,
		dim.Code,
		dim.Label,
		nullString(dim.Description),
		fields,
	).Scan(&dim.ID, &dim.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update dimension: %w", err)
	}

	return nil
}

func (r *dimensionRepository) Delete(ctx context.Context, code string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_dimensions WHERE code = $1`, code)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: dimension %q still has canonical values", apperrors.ErrConflict, code)
		}
		return fmt.Errorf("failed to delete dimension: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *dimensionRepository) GetByCode(ctx context.Context, code string) (*models.Dimension, error) {
	query := `
		SELECT id, code, label, description, extra_fields, created_at, updated_at
		FROM engine_dimensions
		WHERE code = $1`

	dim, err := scanDimension(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return dim, nil
}

func (r *dimensionRepository) List(ctx context.Context) ([]*models.Dimension, error) {
	query := `
		SELECT id, code, label, description, extra_fields, created_at, updated_at
		FROM engine_dimensions
		ORDER BY code`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dimensions: %w", err)
	}
	defer rows.Close()

	var dims []*models.Dimension
	for rows.Next() {
		dim, err := scanDimension(rows)
		if err != nil {
			return nil, err
		}
		dims = append(dims, dim)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dimensions: %w", err)
	}

	return dims, nil
}

func scanDimension(row pgx.Row) (*models.Dimension, error) {
	var d models.Dimension
	var description *string
	var fields []byte

	err := row.Scan(
		&d.ID,
		&d.Code,
		&d.Label,
		&description,
		&fields,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dimension: %w", err)
	}

	d.Description = derefString(description)
	if err := jsonUnmarshal(fields, &d.ExtraFields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extra_fields: %w", err)
	}
	if d.ExtraFields == nil {
		d.ExtraFields = []models.ExtraField{}
	}

	return &d, nil
}
