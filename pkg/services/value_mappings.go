package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// ValueMappingService manages the value mapping ledger.
type ValueMappingService interface {
	// Record upserts a mapping for its ledger key. Concurrent triage of the
	// same raw value resolves last-write-wins. Returns the stored mapping and
	// whether a new ledger row was created.
	Record(ctx context.Context, mapping *models.ValueMapping) (bool, error)
	// Create inserts a mapping and fails when the ledger key is taken.
	Create(ctx context.Context, mapping *models.ValueMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.ValueMapping, error)
	List(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error)
}

type valueMappingService struct {
	repo          repositories.ValueMappingRepository
	canonicalRepo repositories.CanonicalValueRepository
	logger        *zap.Logger
}

// NewValueMappingService creates a ValueMappingService.
func NewValueMappingService(
	repo repositories.ValueMappingRepository,
	canonicalRepo repositories.CanonicalValueRepository,
	logger *zap.Logger,
) ValueMappingService {
	return &valueMappingService{
		repo:          repo,
		canonicalRepo: canonicalRepo,
		logger:        logger.Named("mappings"),
	}
}

var _ ValueMappingService = (*valueMappingService)(nil)

func (s *valueMappingService) Record(ctx context.Context, mapping *models.ValueMapping) (bool, error) {
	if err := s.prepare(ctx, mapping); err != nil {
		return false, err
	}

	created, err := s.repo.Upsert(ctx, mapping)
	if err != nil {
		return false, err
	}

	s.logger.Info("Recorded value mapping",
		zap.String("raw_value", mapping.RawValue),
		zap.String("canonical_id", mapping.CanonicalID.String()),
		zap.Bool("created", created))

	return created, nil
}

func (s *valueMappingService) Create(ctx context.Context, mapping *models.ValueMapping) error {
	if err := s.prepare(ctx, mapping); err != nil {
		return err
	}
	return s.repo.Create(ctx, mapping)
}

func (s *valueMappingService) prepare(ctx context.Context, mapping *models.ValueMapping) error {
	if mapping.RawValue == "" {
		return fmt.Errorf("%w: raw_value is required", apperrors.ErrInvalidInput)
	}
	if mapping.SourceTable == "" || mapping.SourceField == "" {
		return fmt.Errorf("%w: source_table and source_field are required", apperrors.ErrInvalidInput)
	}
	if mapping.Status == "" {
		mapping.Status = models.MappingStatusApproved
	}
	if !mapping.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", apperrors.ErrInvalidInput, mapping.Status)
	}
	if mapping.Confidence != nil {
		clamped := models.ClampScore(*mapping.Confidence)
		mapping.Confidence = &clamped
	}

	// The canonical target must exist; the FK would catch it, but resolving
	// here produces a clean not-found error instead of a constraint failure.
	if _, err := s.canonicalRepo.GetByID(ctx, mapping.CanonicalID); err != nil {
		return fmt.Errorf("canonical value %s: %w", mapping.CanonicalID, err)
	}

	mapping.UpdatedAt = time.Now()
	return nil
}

func (s *valueMappingService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *valueMappingService) Get(ctx context.Context, id uuid.UUID) (*models.ValueMapping, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *valueMappingService) List(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error) {
	return s.repo.ListExpanded(ctx, connectionID, table, field)
}
