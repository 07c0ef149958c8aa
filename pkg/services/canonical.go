package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// CanonicalService manages canonical reference values.
type CanonicalService interface {
	Create(ctx context.Context, value *models.CanonicalValue) error
	Update(ctx context.Context, value *models.CanonicalValue) error
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.CanonicalValue, error)
	List(ctx context.Context, dimension string) ([]*models.CanonicalValue, error)
}

type canonicalService struct {
	repo       repositories.CanonicalValueRepository
	dimensions DimensionService
	logger     *zap.Logger
}

// NewCanonicalService creates a CanonicalService.
func NewCanonicalService(
	repo repositories.CanonicalValueRepository,
	dimensions DimensionService,
	logger *zap.Logger,
) CanonicalService {
	return &canonicalService{
		repo:       repo,
		dimensions: dimensions,
		logger:     logger.Named("canonical"),
	}
}

var _ CanonicalService = (*canonicalService)(nil)

func (s *canonicalService) Create(ctx context.Context, value *models.CanonicalValue) error {
	if err := s.prepare(ctx, value); err != nil {
		return err
	}
	return s.repo.Create(ctx, value)
}

func (s *canonicalService) Update(ctx context.Context, value *models.CanonicalValue) error {
	existing, err := s.repo.GetByID(ctx, value.ID)
	if err != nil {
		return err
	}
	// The dimension is immutable; updates only touch label, description and
	// attributes.
	value.Dimension = existing.Dimension

	if err := s.prepare(ctx, value); err != nil {
		return err
	}
	return s.repo.Update(ctx, value)
}

func (s *canonicalService) prepare(ctx context.Context, value *models.CanonicalValue) error {
	value.CanonicalLabel = strings.TrimSpace(value.CanonicalLabel)
	if value.CanonicalLabel == "" {
		return fmt.Errorf("%w: canonical_label is required", apperrors.ErrInvalidInput)
	}
	if value.Dimension == "" {
		return fmt.Errorf("%w: dimension is required", apperrors.ErrInvalidInput)
	}

	attrs, err := s.dimensions.ValidateAttributes(ctx, value.Dimension, value.Attributes)
	if err != nil {
		return err
	}
	value.Attributes = attrs
	return nil
}

func (s *canonicalService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *canonicalService) Get(ctx context.Context, id uuid.UUID) (*models.CanonicalValue, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *canonicalService) List(ctx context.Context, dimension string) ([]*models.CanonicalValue, error) {
	if dimension != "" {
		if _, err := s.dimensions.Get(ctx, dimension); err != nil {
			if err == apperrors.ErrNotFound {
				return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownDimension, dimension)
			}
			return nil, err
		}
	}
	return s.repo.List(ctx, dimension)
}
