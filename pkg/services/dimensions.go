package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// DimensionService manages the dimension registry and enforces attribute
// schemas for canonical values.
type DimensionService interface {
	Create(ctx context.Context, dim *models.Dimension) error
	Update(ctx context.Context, dim *models.Dimension) error
	Delete(ctx context.Context, code string) error
	Get(ctx context.Context, code string) (*models.Dimension, error)
	List(ctx context.Context) ([]*models.Dimension, error)

	// ValidateAttributes normalizes keys, coerces values to the schema's
	// declared types, and enforces required fields. The returned map is a new
	// map; the input is not modified.
	ValidateAttributes(ctx context.Context, dimensionCode string, attrs map[string]any) (map[string]any, error)
}

type dimensionService struct {
	repo   repositories.DimensionRepository
	logger *zap.Logger
}

// NewDimensionService creates a DimensionService.
func NewDimensionService(repo repositories.DimensionRepository, logger *zap.Logger) DimensionService {
	return &dimensionService{repo: repo, logger: logger.Named("dimensions")}
}

var _ DimensionService = (*dimensionService)(nil)

var keyNormalizer = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeKey folds an arbitrary column header or attribute key into
// snake_case: lowercased, non-alphanumeric runs collapsed to underscores.
func NormalizeKey(key string) string {
	norm := keyNormalizer.ReplaceAllString(strings.ToLower(strings.TrimSpace(key)), "_")
	return strings.Trim(norm, "_")
}

// DeriveDimensionCode produces a registry code from a human label, e.g.
// "Marital Statuses" becomes "marital_status".
func DeriveDimensionCode(label string) string {
	norm := NormalizeKey(label)
	if norm == "" {
		return ""
	}
	parts := strings.Split(norm, "_")
	parts[len(parts)-1] = inflection.Singular(parts[len(parts)-1])
	return strings.Join(parts, "_")
}

func (s *dimensionService) Create(ctx context.Context, dim *models.Dimension) error {
	dim.Code = NormalizeKey(dim.Code)
	normalizeSchema(dim)
	if err := dim.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := s.repo.Create(ctx, dim); err != nil {
		return err
	}
	s.logger.Info("Created dimension", zap.String("code", dim.Code))
	return nil
}

func (s *dimensionService) Update(ctx context.Context, dim *models.Dimension) error {
	dim.Code = NormalizeKey(dim.Code)
	normalizeSchema(dim)
	if err := dim.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return s.repo.Update(ctx, dim)
}

func (s *dimensionService) Delete(ctx context.Context, code string) error {
	return s.repo.Delete(ctx, code)
}

func (s *dimensionService) Get(ctx context.Context, code string) (*models.Dimension, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *dimensionService) List(ctx context.Context) ([]*models.Dimension, error) {
	return s.repo.List(ctx)
}

func (s *dimensionService) ValidateAttributes(ctx context.Context, dimensionCode string, attrs map[string]any) (map[string]any, error) {
	dim, err := s.repo.GetByCode(ctx, dimensionCode)
	if err != nil {
		if err == apperrors.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownDimension, dimensionCode)
		}
		return nil, err
	}

	return ValidateAttributesAgainst(dim, attrs)
}

// ValidateAttributesAgainst checks attrs against an already-loaded dimension.
// The bulk importer uses it for dimensions synthesized mid-transaction.
func ValidateAttributesAgainst(dim *models.Dimension, attrs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(attrs))

	for rawKey, value := range attrs {
		key := NormalizeKey(rawKey)
		if key == "" {
			continue
		}

		field := dim.FieldByKey(key)
		if field == nil {
			return nil, fmt.Errorf("%w: dimension %q has no attribute %q",
				apperrors.ErrAttributeSchemaConflict, dim.Code, key)
		}

		if value == nil {
			continue
		}

		coerced, err := coerceAttribute(field.DataType, value)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %q: %v",
				apperrors.ErrAttributeSchemaConflict, key, err)
		}
		out[key] = coerced
	}

	for _, field := range dim.ExtraFields {
		if field.Required {
			if _, ok := out[field.Key]; !ok {
				return nil, fmt.Errorf("%w: required attribute %q is missing",
					apperrors.ErrAttributeSchemaConflict, field.Key)
			}
		}
	}

	return out, nil
}

// coerceAttribute converts a raw attribute value to the schema type.
// Spreadsheet cells arrive as strings, so string forms of numbers and
// booleans are accepted.
func coerceAttribute(dataType models.FieldType, value any) (any, error) {
	switch dataType {
	case models.FieldTypeString:
		switch v := value.(type) {
		case string:
			return v, nil
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
			return strconv.FormatFloat(v, 'g', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	case models.FieldTypeNumber:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int:
			return float64(v), nil
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", v)
			}
			return parsed, nil
		}
	case models.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "y", "1":
				return true, nil
			case "false", "no", "n", "0":
				return false, nil
			}
			return nil, fmt.Errorf("%q is not a boolean", v)
		case float64:
			return v != 0, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %T to %s", value, dataType)
}

// normalizeSchema normalizes field keys and defaults missing data types.
func normalizeSchema(dim *models.Dimension) {
	for i := range dim.ExtraFields {
		dim.ExtraFields[i].Key = NormalizeKey(dim.ExtraFields[i].Key)
		if dim.ExtraFields[i].DataType == "" {
			dim.ExtraFields[i].DataType = models.FieldTypeString
		}
		if dim.ExtraFields[i].Label == "" {
			dim.ExtraFields[i].Label = dim.ExtraFields[i].Key
		}
	}
}
