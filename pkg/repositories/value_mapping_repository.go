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

// ValueMappingRepository provides data access for the value mapping ledger.
type ValueMappingRepository interface {
	// Create inserts a new mapping and fails with ErrDuplicateMapping when
	// the ledger key is already taken.
	Create(ctx context.Context, mapping *models.ValueMapping) error
	// Upsert inserts or overwrites the mapping for its ledger key. The
	// returned flag is true when a new row was created.
	Upsert(ctx context.Context, mapping *models.ValueMapping) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ValueMapping, error)
	// FindByKey resolves a mapping by its ledger key. Returns nil when the
	// raw value has no mapping.
	FindByKey(ctx context.Context, connectionID uuid.UUID, table, field, rawValue string) (*models.ValueMapping, error)
	// ListExpanded returns the connection's ledger joined with canonical
	// labels, optionally filtered by table and field.
	ListExpanded(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error)
}

type valueMappingRepository struct {
	db database.Querier
}

// NewValueMappingRepository creates a new ValueMappingRepository.
func NewValueMappingRepository(db database.Querier) ValueMappingRepository {
	return &valueMappingRepository{db: db}
}

var _ ValueMappingRepository = (*valueMappingRepository)(nil)

func (r *valueMappingRepository) Create(ctx context.Context, mapping *models.ValueMapping) error {
	now := time.Now()

	query := `
		INSERT INTO engine_value_mappings (
			connection_id, source_table, source_field, raw_value, canonical_id,
			status, confidence, suggested_label, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		mapping.ConnectionID,
		mapping.SourceTable,
		mapping.SourceField,
		mapping.RawValue,
		mapping.CanonicalID,
		mapping.Status,
		mapping.Confidence,
		nullString(mapping.SuggestedLabel),
		nullString(mapping.Notes),
		now,
		now,
	).Scan(&mapping.ID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.ErrDuplicateMapping
		}
		return fmt.Errorf("failed to create value mapping: %w", err)
	}

	return nil
}

func (r *valueMappingRepository) Upsert(ctx context.Context, mapping *models.ValueMapping) (bool, error) {
	now := time.Now()

	// xmax = 0 distinguishes a fresh insert from a conflict update.
	query := `
		INSERT INTO engine_value_mappings (
			connection_id, source_table, source_field, raw_value, canonical_id,
			status, confidence, suggested_label, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (connection_id, source_table, source_field, raw_value)
		DO UPDATE SET
			canonical_id = EXCLUDED.canonical_id,
			status = EXCLUDED.status,
			confidence = EXCLUDED.confidence,
			suggested_label = EXCLUDED.suggested_label,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	err := r.db.QueryRow(ctx, query,
		mapping.ConnectionID,
		mapping.SourceTable,
		mapping.SourceField,
		mapping.RawValue,
		mapping.CanonicalID,
		mapping.Status,
		mapping.Confidence,
		nullString(mapping.SuggestedLabel),
		nullString(mapping.Notes),
		now,
		now,
	).Scan(&mapping.ID, &mapping.CreatedAt, &mapping.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert value mapping: %w", err)
	}

	return inserted, nil
}

func (r *valueMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM engine_value_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete value mapping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *valueMappingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ValueMapping, error) {
	query := valueMappingSelect + ` WHERE id = $1`

	mapping, err := scanValueMapping(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return mapping, nil
}

func (r *valueMappingRepository) FindByKey(ctx context.Context, connectionID uuid.UUID, table, field, rawValue string) (*models.ValueMapping, error) {
	query := valueMappingSelect + `
		WHERE connection_id = $1 AND source_table = $2 AND source_field = $3 AND raw_value = $4`

	mapping, err := scanValueMapping(r.db.QueryRow(ctx, query, connectionID, table, field, rawValue))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // No mapping for this raw value
		}
		return nil, err
	}
	return mapping, nil
}

func (r *valueMappingRepository) ListExpanded(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error) {
	query := `
		SELECT vm.id, vm.connection_id, vm.source_table, vm.source_field, vm.raw_value,
		       vm.canonical_id, vm.status, vm.confidence, vm.suggested_label, vm.notes,
		       vm.created_at, vm.updated_at,
		       cv.canonical_label, cv.dimension
		FROM engine_value_mappings vm
		JOIN engine_canonical_values cv ON cv.id = vm.canonical_id
		WHERE vm.connection_id = $1`

	args := []any{connectionID}
	if table != "" {
		args = append(args, table)
		query += fmt.Sprintf(" AND vm.source_table = $%d", len(args))
	}
	if field != "" {
		args = append(args, field)
		query += fmt.Sprintf(" AND vm.source_field = $%d", len(args))
	}
	query += ` ORDER BY vm.source_table, vm.source_field, vm.raw_value`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query value mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.ValueMappingExpanded
	for rows.Next() {
		var m models.ValueMappingExpanded
		var suggestedLabel, notes *string

		err := rows.Scan(
			&m.ID,
			&m.ConnectionID,
			&m.SourceTable,
			&m.SourceField,
			&m.RawValue,
			&m.CanonicalID,
			&m.Status,
			&m.Confidence,
			&suggestedLabel,
			&notes,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.CanonicalLabel,
			&m.RefDimension,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan value mapping: %w", err)
		}

		m.SuggestedLabel = derefString(suggestedLabel)
		m.Notes = derefString(notes)
		mappings = append(mappings, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating value mappings: %w", err)
	}

	return mappings, nil
}

const valueMappingSelect = `
	SELECT id, connection_id, source_table, source_field, raw_value, canonical_id,
	       status, confidence, suggested_label, notes, created_at, updated_at
	FROM engine_value_mappings`

func scanValueMapping(row pgx.Row) (*models.ValueMapping, error) {
	var m models.ValueMapping
	var suggestedLabel, notes *string

	err := row.Scan(
		&m.ID,
		&m.ConnectionID,
		&m.SourceTable,
		&m.SourceField,
		&m.RawValue,
		&m.CanonicalID,
		&m.Status,
		&m.Confidence,
		&suggestedLabel,
		&notes,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan value mapping: %w", err)
	}

	m.SuggestedLabel = derefString(suggestedLabel)
	m.Notes = derefString(notes)

	return &m, nil
}
