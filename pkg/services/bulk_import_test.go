package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/tabular"
)

func statusTable() *tabular.Table {
	return &tabular.Table{
		Columns: []string{"Label", "Code", "Description"},
		Rows: [][]string{
			{"Married", "M", "Legally married"},
			{"Single", "S", "Never married"},
			{"", "X", "row without a label"},
		},
	}
}

func statusMapping() models.ImportMapping {
	return models.ImportMapping{
		Columns: []models.ColumnAssignment{
			{Column: "Label", Role: models.RoleLabel},
			{Column: "Code", Role: models.RoleAttribute, AttributeKey: "code"},
			{Column: "Description", Role: models.RoleDescription},
		},
		DefaultDimension: "marital_status",
	}
}

func newTestImporter(dims *mockDimensionRepo, values *mockCanonicalRepo) BulkImportService {
	return NewBulkImportService(nil, dims, values, zap.NewNop())
}

func existingStatusDimension() *mockDimensionRepo {
	dim := &models.Dimension{
		Code:  "marital_status",
		Label: "Marital Status",
		ExtraFields: []models.ExtraField{
			{Key: "code", Label: "Code", DataType: models.FieldTypeString},
		},
	}
	return &mockDimensionRepo{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Dimension, error) {
			if code == "marital_status" {
				return dim, nil
			}
			return nil, apperrors.ErrNotFound
		},
		ListFunc: func(ctx context.Context) ([]*models.Dimension, error) {
			return []*models.Dimension{dim}, nil
		},
	}
}

func TestBulkImportDryRun(t *testing.T) {
	importer := newTestImporter(existingStatusDimension(), &mockCanonicalRepo{})

	result, err := importer.Run(context.Background(), statusTable(), statusMapping(), true, models.DuplicateStrategyNone)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	require.Len(t, result.Created, 2)
	assert.Equal(t, "Married", result.Created[0].CanonicalLabel)
	assert.Equal(t, "marital_status", result.Created[0].Dimension)
	assert.Equal(t, "M", result.Created[0].Attributes["code"])
	assert.Equal(t, "Legally married", result.Created[0].Description)

	// The labelless row is an error entry, not a failure.
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "row 4")
	assert.Empty(t, result.Duplicates)
}

func TestBulkImportDetectsCaseInsensitiveDuplicates(t *testing.T) {
	existing := &models.CanonicalValue{
		ID:             uuid.New(),
		Dimension:      "marital_status",
		CanonicalLabel: "MARRIED",
	}
	values := &mockCanonicalRepo{
		FindByLabelFunc: func(ctx context.Context, dimension, label string) (*models.CanonicalValue, error) {
			if dimension == "marital_status" && label == "Married" {
				return existing, nil
			}
			return nil, nil
		},
	}

	importer := newTestImporter(existingStatusDimension(), values)

	result, err := importer.Run(context.Background(), statusTable(), statusMapping(), true, models.DuplicateStrategyNone)
	require.NoError(t, err)

	require.Len(t, result.Duplicates, 1)
	dup := result.Duplicates[0]
	assert.Equal(t, 2, dup.RowNumber)
	assert.Equal(t, "Married", dup.CanonicalLabel)
	assert.Same(t, existing, dup.ExistingValue)
	assert.Equal(t, "Legally married", dup.IncomingDescription)

	require.Len(t, result.Created, 1)
	assert.Equal(t, "Single", result.Created[0].CanonicalLabel)
}

func TestBulkImportCommitWithoutStrategyAborts(t *testing.T) {
	values := &mockCanonicalRepo{
		FindByLabelFunc: func(ctx context.Context, dimension, label string) (*models.CanonicalValue, error) {
			if label == "Married" {
				return &models.CanonicalValue{CanonicalLabel: "Married"}, nil
			}
			return nil, nil
		},
	}

	importer := newTestImporter(existingStatusDimension(), values)

	result, err := importer.Run(context.Background(), statusTable(), statusMapping(), false, models.DuplicateStrategyNone)
	require.ErrorIs(t, err, apperrors.ErrConflict)
	require.NotNil(t, result)
	assert.Len(t, result.Duplicates, 1)
}

func TestBulkImportInBatchDuplicateIsRowError(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"Label"},
		Rows:    [][]string{{"Married"}, {"married"}},
	}
	mapping := models.ImportMapping{
		Columns:          []models.ColumnAssignment{{Column: "Label", Role: models.RoleLabel}},
		DefaultDimension: "marital_status",
	}

	dims := &mockDimensionRepo{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Dimension, error) {
			return &models.Dimension{Code: code, Label: "Marital Status"}, nil
		},
	}

	result, err := newTestImporter(dims, &mockCanonicalRepo{}).
		Run(context.Background(), table, mapping, true, models.DuplicateStrategyNone)
	require.NoError(t, err)

	assert.Len(t, result.Created, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "duplicate of row 2")
}

func TestBulkImportMappingValidation(t *testing.T) {
	table := statusTable()
	importer := newTestImporter(existingStatusDimension(), &mockCanonicalRepo{})

	// No label column.
	mapping := models.ImportMapping{
		Columns:          []models.ColumnAssignment{{Column: "Code", Role: models.RoleAttribute, AttributeKey: "code"}},
		DefaultDimension: "marital_status",
	}
	_, err := importer.Run(context.Background(), table, mapping, true, models.DuplicateStrategyNone)
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousColumnMapping)

	// Two label columns.
	mapping = models.ImportMapping{
		Columns: []models.ColumnAssignment{
			{Column: "Label", Role: models.RoleLabel},
			{Column: "Code", Role: models.RoleLabel},
		},
		DefaultDimension: "marital_status",
	}
	_, err = importer.Run(context.Background(), table, mapping, true, models.DuplicateStrategyNone)
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousColumnMapping)

	// Colliding attribute keys after normalization.
	mapping = models.ImportMapping{
		Columns: []models.ColumnAssignment{
			{Column: "Label", Role: models.RoleLabel},
			{Column: "Code", Role: models.RoleAttribute, AttributeKey: "ISO Code"},
			{Column: "Description", Role: models.RoleAttribute, AttributeKey: "iso_code"},
		},
		DefaultDimension: "marital_status",
	}
	_, err = importer.Run(context.Background(), table, mapping, true, models.DuplicateStrategyNone)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateKey)

	// No dimension source at all.
	mapping = models.ImportMapping{
		Columns: []models.ColumnAssignment{{Column: "Label", Role: models.RoleLabel}},
	}
	_, err = importer.Run(context.Background(), table, mapping, true, models.DuplicateStrategyNone)
	assert.ErrorIs(t, err, apperrors.ErrAmbiguousColumnMapping)
}

func TestBulkImportUnknownDimensionRowsError(t *testing.T) {
	dims := &mockDimensionRepo{} // every lookup misses

	result, err := newTestImporter(dims, &mockCanonicalRepo{}).
		Run(context.Background(), statusTable(), statusMapping(), true, models.DuplicateStrategyNone)
	require.NoError(t, err)

	assert.Empty(t, result.Created)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unknown dimension")
}

func TestBulkImportSynthesizesDimension(t *testing.T) {
	dims := &mockDimensionRepo{} // dimension does not exist

	mapping := statusMapping()
	mapping.CreateDimension = true
	mapping.DimensionLabel = "Marital Status"

	result, err := newTestImporter(dims, &mockCanonicalRepo{}).
		Run(context.Background(), statusTable(), mapping, true, models.DuplicateStrategyNone)
	require.NoError(t, err)

	require.Len(t, result.Created, 2)
	assert.Equal(t, "marital_status", result.Created[0].Dimension)
	assert.Equal(t, "M", result.Created[0].Attributes["code"])
}

func TestBulkImportPreview(t *testing.T) {
	importer := newTestImporter(existingStatusDimension(), &mockCanonicalRepo{})

	preview, err := importer.Preview(context.Background(), statusTable(), nil, "", "", "marital_status")
	require.NoError(t, err)

	assert.Equal(t, 3, preview.RowCount)
	assert.Equal(t, "marital_status", preview.Dimension)
	assert.True(t, preview.DimensionExists)
	assert.Nil(t, preview.ProposedDimension)
	assert.Len(t, preview.Columns, 3)
}

func TestBulkImportPreviewProposesDimension(t *testing.T) {
	importer := newTestImporter(&mockDimensionRepo{}, &mockCanonicalRepo{})

	preview, err := importer.Preview(context.Background(), statusTable(), nil, "", "", "Employment Types")
	require.NoError(t, err)

	assert.False(t, preview.DimensionExists)
	require.NotNil(t, preview.ProposedDimension)
	// New codes are normalized and singularized.
	assert.Equal(t, "employment_type", preview.ProposedDimension.Code)
	// Attribute columns become optional schema fields.
	require.Len(t, preview.ProposedDimension.ExtraFields, 1)
	assert.Equal(t, "code", preview.ProposedDimension.ExtraFields[0].Key)
	assert.False(t, preview.ProposedDimension.ExtraFields[0].Required)
}

func TestBulkImportPreviewHintMatchesPluralRegistryCode(t *testing.T) {
	dim := &models.Dimension{Code: "employment_types", Label: "Employment Types"}
	dims := &mockDimensionRepo{
		ListFunc: func(ctx context.Context) ([]*models.Dimension, error) {
			return []*models.Dimension{dim}, nil
		},
	}
	importer := newTestImporter(dims, &mockCanonicalRepo{})

	// A registered code is never singularized away.
	preview, err := importer.Preview(context.Background(), statusTable(), nil, "", "", "employment_types")
	require.NoError(t, err)
	assert.Equal(t, "employment_types", preview.Dimension)
	assert.True(t, preview.DimensionExists)
}

func TestBulkImportPreviewDimensionFromColumnValues(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"Name", "Kind"},
		Rows: [][]string{
			{"Married", "marital_status"},
			{"Single", "marital_status"},
			{"Female", "gender"},
		},
	}
	maritalStatus := &models.Dimension{Code: "marital_status", Label: "Marital Status"}
	gender := &models.Dimension{Code: "gender", Label: "Gender"}
	dims := &mockDimensionRepo{
		ListFunc: func(ctx context.Context) ([]*models.Dimension, error) {
			return []*models.Dimension{gender, maritalStatus}, nil
		},
	}
	importer := newTestImporter(dims, &mockCanonicalRepo{})

	preview, err := importer.Preview(context.Background(), table, nil, "", "", "")
	require.NoError(t, err)

	// "Kind" is no header hint, but its values are registered codes.
	assert.Equal(t, models.RoleDimension, roleByName(preview.Columns, "Kind").Role)
	assert.Equal(t, "marital_status", preview.Dimension, "most frequent column value wins")
	assert.True(t, preview.DimensionExists)
}

func TestBulkImportPreviewDerivesDimensionFromSheetName(t *testing.T) {
	table := &tabular.Table{
		Columns: []string{"Label"},
		Rows:    [][]string{{"Married"}, {"Single"}},
	}
	importer := newTestImporter(&mockDimensionRepo{}, &mockCanonicalRepo{})

	preview, err := importer.Preview(context.Background(), table, []string{"Marital Statuses"}, "Marital Statuses", "upload", "")
	require.NoError(t, err)

	assert.Equal(t, "marital_status", preview.Dimension)
	assert.False(t, preview.DimensionExists)
	require.NotNil(t, preview.ProposedDimension)
	assert.Equal(t, "marital_status", preview.ProposedDimension.Code)
}
