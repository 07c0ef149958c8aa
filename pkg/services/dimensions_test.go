package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ISO Code", "iso_code"},
		{"  Country-Name  ", "country_name"},
		{"already_normal", "already_normal"},
		{"Weird!!Chars##Here", "weird_chars_here"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in), "input %q", tt.in)
	}
}

func TestDeriveDimensionCode(t *testing.T) {
	assert.Equal(t, "marital_status", DeriveDimensionCode("Marital Statuses"))
	assert.Equal(t, "country", DeriveDimensionCode("Countries"))
	assert.Equal(t, "currency_code", DeriveDimensionCode("Currency Codes"))
	assert.Equal(t, "", DeriveDimensionCode("  "))
}

func statusDimension() *models.Dimension {
	return &models.Dimension{
		Code:  "marital_status",
		Label: "Marital Status",
		ExtraFields: []models.ExtraField{
			{Key: "code", Label: "Code", DataType: models.FieldTypeString, Required: true},
			{Key: "sort_order", Label: "Sort Order", DataType: models.FieldTypeNumber},
			{Key: "active", Label: "Active", DataType: models.FieldTypeBoolean},
		},
	}
}

func TestValidateAttributesAgainst(t *testing.T) {
	dim := statusDimension()

	attrs, err := ValidateAttributesAgainst(dim, map[string]any{
		"Code":       "M",
		"Sort Order": "3",
		"active":     "yes",
	})
	require.NoError(t, err)

	assert.Equal(t, "M", attrs["code"])
	assert.Equal(t, 3.0, attrs["sort_order"])
	assert.Equal(t, true, attrs["active"])
}

func TestValidateAttributesUnknownKey(t *testing.T) {
	_, err := ValidateAttributesAgainst(statusDimension(), map[string]any{
		"code":    "M",
		"surprise": "x",
	})
	assert.ErrorIs(t, err, apperrors.ErrAttributeSchemaConflict)
}

func TestValidateAttributesMissingRequired(t *testing.T) {
	_, err := ValidateAttributesAgainst(statusDimension(), map[string]any{
		"sort_order": 1,
	})
	assert.ErrorIs(t, err, apperrors.ErrAttributeSchemaConflict)
}

func TestValidateAttributesBadNumber(t *testing.T) {
	_, err := ValidateAttributesAgainst(statusDimension(), map[string]any{
		"code":       "M",
		"sort_order": "not-a-number",
	})
	assert.ErrorIs(t, err, apperrors.ErrAttributeSchemaConflict)
}

func TestCoerceAttribute(t *testing.T) {
	got, err := coerceAttribute(models.FieldTypeString, 42.0)
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	got, err = coerceAttribute(models.FieldTypeNumber, 7)
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)

	got, err = coerceAttribute(models.FieldTypeBoolean, "No")
	require.NoError(t, err)
	assert.Equal(t, false, got)

	_, err = coerceAttribute(models.FieldTypeBoolean, "maybe")
	assert.Error(t, err)
}
