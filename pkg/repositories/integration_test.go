package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/testhelpers"
)

func seedDimension(t *testing.T, repo DimensionRepository, code string) *models.Dimension {
	t.Helper()
	dim := &models.Dimension{Code: code, Label: code}
	require.NoError(t, repo.Create(context.Background(), dim))
	return dim
}

func seedConnection(t *testing.T, repo ConnectionRepository, name string) *models.SourceConnection {
	t.Helper()
	conn := &models.SourceConnection{
		Name: name, DBType: "postgres", Host: "db", Port: 5432,
		Database: "crm", Username: "reader", Password: "secret",
	}
	require.NoError(t, repo.Create(context.Background(), conn))
	return conn
}

func TestDimensionRepository_CRUD(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	repo := NewDimensionRepository(testDB.DB)

	dim := &models.Dimension{
		Code:  "marital_status",
		Label: "Marital Status",
		ExtraFields: []models.ExtraField{
			{Key: "code", Label: "Code", DataType: models.FieldTypeString},
		},
	}
	require.NoError(t, repo.Create(ctx, dim))
	assert.NotEqual(t, uuid.Nil, dim.ID)

	// Duplicate code is a conflict.
	err := repo.Create(ctx, &models.Dimension{Code: "marital_status", Label: "Again"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := repo.GetByCode(ctx, "marital_status")
	require.NoError(t, err)
	assert.Equal(t, dim.ID, got.ID)
	require.Len(t, got.ExtraFields, 1)
	assert.Equal(t, "code", got.ExtraFields[0].Key)

	got.Description = "Civil status"
	require.NoError(t, repo.Update(ctx, got))

	dims, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "Civil status", dims[0].Description)

	require.NoError(t, repo.Delete(ctx, "marital_status"))
	_, err = repo.GetByCode(ctx, "marital_status")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCanonicalValueRepository_CaseInsensitiveLabels(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	dims := NewDimensionRepository(testDB.DB)
	repo := NewCanonicalValueRepository(testDB.DB)
	seedDimension(t, dims, "marital_status")

	value := &models.CanonicalValue{
		Dimension:      "marital_status",
		CanonicalLabel: "Married",
		Attributes:     map[string]any{"code": "M"},
	}
	require.NoError(t, repo.Create(ctx, value))

	// The unique index is on the lowercased label.
	err := repo.Create(ctx, &models.CanonicalValue{
		Dimension:      "marital_status",
		CanonicalLabel: "MARRIED",
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	found, err := repo.FindByLabel(ctx, "marital_status", "mArRiEd")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, value.ID, found.ID)
	assert.Equal(t, "M", found.Attributes["code"])

	missing, err := repo.FindByLabel(ctx, "marital_status", "Engaged")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Same label in a different dimension is fine.
	seedDimension(t, dims, "other")
	require.NoError(t, repo.Create(ctx, &models.CanonicalValue{
		Dimension:      "other",
		CanonicalLabel: "Married",
	}))

	values, err := repo.List(ctx, "marital_status")
	require.NoError(t, err)
	assert.Len(t, values, 1)
}

func TestConnectionRepository_UpdateKeepsPassword(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	repo := NewConnectionRepository(testDB.DB)

	conn := seedConnection(t, repo, "warehouse")

	// Updating without a password keeps the stored credential.
	update := *conn
	update.Name = "warehouse-renamed"
	update.Password = ""
	require.NoError(t, repo.Update(ctx, &update))

	got, err := repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "warehouse-renamed", got.Name)
	assert.Equal(t, "secret", got.Password)

	// An explicit new password replaces it.
	update.Password = "rotated"
	require.NoError(t, repo.Update(ctx, &update))
	got, err = repo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Password)
}

func TestSampleRepository_AdditiveUpsert(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	conns := NewConnectionRepository(testDB.DB)
	repo := NewSampleRepository(testDB.DB)
	conn := seedConnection(t, conns, "warehouse")

	require.NoError(t, repo.UpsertBatch(ctx, conn.ID, "patients", "marital_status", []SampleIngest{
		{RawValue: "M", Count: 70},
		{RawValue: "Married", Count: 20},
	}))
	// A second push for the same value adds to the count.
	require.NoError(t, repo.UpsertBatch(ctx, conn.ID, "patients", "marital_status", []SampleIngest{
		{RawValue: "M", Count: 5},
	}))

	samples, err := repo.ListByField(ctx, conn.ID, "patients", "marital_status")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "M", samples[0].RawValue, "ordered by occurrence count desc")
	assert.Equal(t, 75, samples[0].OccurrenceCount)
	assert.Equal(t, 20, samples[1].OccurrenceCount)

	require.NoError(t, repo.DeleteByField(ctx, conn.ID, "patients", "marital_status"))
	samples, err = repo.ListByField(ctx, conn.ID, "patients", "marital_status")
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestValueMappingRepository_UpsertAndExpand(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	dims := NewDimensionRepository(testDB.DB)
	canonical := NewCanonicalValueRepository(testDB.DB)
	conns := NewConnectionRepository(testDB.DB)
	repo := NewValueMappingRepository(testDB.DB)

	seedDimension(t, dims, "marital_status")
	conn := seedConnection(t, conns, "warehouse")
	married := &models.CanonicalValue{Dimension: "marital_status", CanonicalLabel: "Married"}
	single := &models.CanonicalValue{Dimension: "marital_status", CanonicalLabel: "Single"}
	require.NoError(t, canonical.Create(ctx, married))
	require.NoError(t, canonical.Create(ctx, single))

	mapping := &models.ValueMapping{
		ConnectionID: conn.ID,
		SourceTable:  "patients",
		SourceField:  "marital_status",
		RawValue:     "M",
		CanonicalID:  married.ID,
		Status:       models.MappingStatusApproved,
	}
	created, err := repo.Upsert(ctx, mapping)
	require.NoError(t, err)
	assert.True(t, created)

	// Create on the same ledger key is a duplicate.
	err = repo.Create(ctx, &models.ValueMapping{
		ConnectionID: conn.ID,
		SourceTable:  "patients",
		SourceField:  "marital_status",
		RawValue:     "M",
		CanonicalID:  single.ID,
		Status:       models.MappingStatusApproved,
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateMapping)

	// Re-upsert retargets the mapping and reports an overwrite.
	mapping.CanonicalID = single.ID
	created, err = repo.Upsert(ctx, mapping)
	require.NoError(t, err)
	assert.False(t, created)

	found, err := repo.FindByKey(ctx, conn.ID, "patients", "marital_status", "M")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, single.ID, found.CanonicalID)

	expanded, err := repo.ListExpanded(ctx, conn.ID, "patients", "marital_status")
	require.NoError(t, err)
	require.Len(t, expanded, 1)
	assert.Equal(t, "Single", expanded[0].CanonicalLabel)
	assert.Equal(t, "marital_status", expanded[0].RefDimension)

	require.NoError(t, repo.Delete(ctx, found.ID))
	missing, err := repo.FindByKey(ctx, conn.ID, "patients", "marital_status", "M")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSettingsRepository_RoundTrip(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	repo := NewSettingsRepository(testDB.DB)

	settings, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.6, settings.MatchThreshold)
	assert.Equal(t, models.BackendEmbedding, settings.MatcherBackend)

	settings.MatchThreshold = 0.8
	settings.MatcherBackend = models.BackendLLM
	settings.LLMModel = "gpt-4o-mini"
	settings.LLMAPIKey = "sk-test"
	require.NoError(t, repo.Save(ctx, settings))

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.MatchThreshold)
	assert.Equal(t, models.BackendLLM, got.MatcherBackend)
	assert.Equal(t, "sk-test", got.LLMAPIKey)
}

func TestFieldMappingRepository_ListByConnection(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)
	ctx := context.Background()
	dims := NewDimensionRepository(testDB.DB)
	conns := NewConnectionRepository(testDB.DB)
	repo := NewFieldMappingRepository(testDB.DB)

	seedDimension(t, dims, "marital_status")
	conn := seedConnection(t, conns, "warehouse")

	first := &models.SourceFieldMapping{
		ConnectionID: conn.ID, SourceTable: "patients", SourceField: "marital_status",
		RefDimension: "marital_status",
	}
	second := &models.SourceFieldMapping{
		ConnectionID: conn.ID, SourceTable: "contacts", SourceField: "status",
		RefDimension: "marital_status",
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	mappings, err := repo.ListByConnection(ctx, conn.ID)
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "contacts", mappings[0].SourceTable, "ordered by table then field")

	first.SourceField = "civil_status"
	require.NoError(t, repo.Update(ctx, first))

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "civil_status", got.SourceField)

	require.NoError(t, repo.Delete(ctx, second.ID))
	mappings, err = repo.ListByConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.Len(t, mappings, 1)
}
