package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

// seedFile is the YAML shape of a reference data seed.
type seedFile struct {
	Dimensions []seedDimension `yaml:"dimensions"`
}

type seedDimension struct {
	Code        string           `yaml:"code"`
	Label       string           `yaml:"label"`
	Description string           `yaml:"description"`
	ExtraFields []seedExtraField `yaml:"extra_fields"`
	Values      []seedValue      `yaml:"values"`
}

type seedExtraField struct {
	Key      string `yaml:"key"`
	Label    string `yaml:"label"`
	DataType string `yaml:"data_type"`
	Required bool   `yaml:"required"`
}

type seedValue struct {
	Label       string         `yaml:"label"`
	Description string         `yaml:"description"`
	Attributes  map[string]any `yaml:"attributes"`
}

// SeedService loads reference data from a YAML file at startup. Seeding is
// idempotent: dimensions and values that already exist are left untouched.
type SeedService interface {
	LoadFile(ctx context.Context, path string) error
}

type seedService struct {
	dimensions DimensionService
	canonical  CanonicalService
	logger     *zap.Logger
}

// NewSeedService creates a SeedService.
func NewSeedService(dimensions DimensionService, canonical CanonicalService, logger *zap.Logger) SeedService {
	return &seedService{
		dimensions: dimensions,
		canonical:  canonical,
		logger:     logger.Named("seeds"),
	}
}

var _ SeedService = (*seedService)(nil)

func (s *seedService) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seeds seedFile
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	created, skipped := 0, 0
	for _, sd := range seeds.Dimensions {
		dim := &models.Dimension{
			Code:        sd.Code,
			Label:       sd.Label,
			Description: sd.Description,
		}
		for _, f := range sd.ExtraFields {
			dim.ExtraFields = append(dim.ExtraFields, models.ExtraField{
				Key:      f.Key,
				Label:    f.Label,
				DataType: models.FieldType(f.DataType),
				Required: f.Required,
			})
		}

		if err := s.dimensions.Create(ctx, dim); err != nil {
			if !errors.Is(err, apperrors.ErrConflict) {
				return fmt.Errorf("seed dimension %q: %w", sd.Code, err)
			}
		}

		for _, sv := range sd.Values {
			value := &models.CanonicalValue{
				Dimension:      NormalizeKey(sd.Code),
				CanonicalLabel: sv.Label,
				Description:    sv.Description,
				Attributes:     sv.Attributes,
			}
			err := s.canonical.Create(ctx, value)
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperrors.ErrConflict):
				skipped++
			default:
				return fmt.Errorf("seed value %q in %q: %w", sv.Label, sd.Code, err)
			}
		}
	}

	s.logger.Info("Seed data loaded",
		zap.String("path", path),
		zap.Int("dimensions", len(seeds.Dimensions)),
		zap.Int("values_created", created),
		zap.Int("values_skipped", skipped))

	return nil
}
