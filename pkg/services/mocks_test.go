package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// Function-field mocks for the repository interfaces. Unset functions fall
// back to empty results so tests only wire what they exercise.

type mockCanonicalRepo struct {
	ListFunc        func(ctx context.Context, dimension string) ([]*models.CanonicalValue, error)
	GetByIDFunc     func(ctx context.Context, id uuid.UUID) (*models.CanonicalValue, error)
	FindByLabelFunc func(ctx context.Context, dimension, label string) (*models.CanonicalValue, error)
	CreateFunc      func(ctx context.Context, value *models.CanonicalValue) error
	UpdateFunc      func(ctx context.Context, value *models.CanonicalValue) error
}

func (m *mockCanonicalRepo) Create(ctx context.Context, value *models.CanonicalValue) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, value)
	}
	return nil
}

func (m *mockCanonicalRepo) Update(ctx context.Context, value *models.CanonicalValue) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, value)
	}
	return nil
}

func (m *mockCanonicalRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockCanonicalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CanonicalValue, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCanonicalRepo) List(ctx context.Context, dimension string) ([]*models.CanonicalValue, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, dimension)
	}
	return nil, nil
}

func (m *mockCanonicalRepo) FindByLabel(ctx context.Context, dimension, label string) (*models.CanonicalValue, error) {
	if m.FindByLabelFunc != nil {
		return m.FindByLabelFunc(ctx, dimension, label)
	}
	return nil, nil
}

func (m *mockCanonicalRepo) WithTx(q database.Querier) repositories.CanonicalValueRepository {
	return m
}

type mockDimensionRepo struct {
	GetByCodeFunc func(ctx context.Context, code string) (*models.Dimension, error)
	CreateFunc    func(ctx context.Context, dim *models.Dimension) error
	ListFunc      func(ctx context.Context) ([]*models.Dimension, error)
}

func (m *mockDimensionRepo) Create(ctx context.Context, dim *models.Dimension) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, dim)
	}
	return nil
}

func (m *mockDimensionRepo) Update(ctx context.Context, dim *models.Dimension) error { return nil }
func (m *mockDimensionRepo) Delete(ctx context.Context, code string) error           { return nil }

func (m *mockDimensionRepo) GetByCode(ctx context.Context, code string) (*models.Dimension, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDimensionRepo) List(ctx context.Context) ([]*models.Dimension, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return nil, nil
}

func (m *mockDimensionRepo) WithTx(q database.Querier) repositories.DimensionRepository {
	return m
}

type mockSettingsRepo struct {
	settings models.MatchSettings
	saved    *models.MatchSettings
}

func (m *mockSettingsRepo) Get(ctx context.Context) (models.MatchSettings, error) {
	return m.settings, nil
}

func (m *mockSettingsRepo) Save(ctx context.Context, settings models.MatchSettings) error {
	m.saved = &settings
	return nil
}

type mockFieldMappingRepo struct {
	GetByIDFunc          func(ctx context.Context, id uuid.UUID) (*models.SourceFieldMapping, error)
	ListByConnectionFunc func(ctx context.Context, connectionID uuid.UUID) ([]*models.SourceFieldMapping, error)
}

func (m *mockFieldMappingRepo) Create(ctx context.Context, mapping *models.SourceFieldMapping) error {
	return nil
}
func (m *mockFieldMappingRepo) Update(ctx context.Context, mapping *models.SourceFieldMapping) error {
	return nil
}
func (m *mockFieldMappingRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockFieldMappingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceFieldMapping, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockFieldMappingRepo) ListByConnection(ctx context.Context, connectionID uuid.UUID) ([]*models.SourceFieldMapping, error) {
	if m.ListByConnectionFunc != nil {
		return m.ListByConnectionFunc(ctx, connectionID)
	}
	return nil, nil
}

type mockSampleRepo struct {
	ListByFieldFunc func(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.SourceSample, error)
}

func (m *mockSampleRepo) UpsertBatch(ctx context.Context, connectionID uuid.UUID, table, field string, samples []repositories.SampleIngest) error {
	return nil
}

func (m *mockSampleRepo) ListByField(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.SourceSample, error) {
	if m.ListByFieldFunc != nil {
		return m.ListByFieldFunc(ctx, connectionID, table, field)
	}
	return nil, nil
}

func (m *mockSampleRepo) DeleteByField(ctx context.Context, connectionID uuid.UUID, table, field string) error {
	return nil
}

type mockValueMappingRepo struct {
	ListExpandedFunc func(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error)
	UpsertFunc       func(ctx context.Context, mapping *models.ValueMapping) (bool, error)
	FindByKeyFunc    func(ctx context.Context, connectionID uuid.UUID, table, field, rawValue string) (*models.ValueMapping, error)
}

func (m *mockValueMappingRepo) Create(ctx context.Context, mapping *models.ValueMapping) error {
	return nil
}

func (m *mockValueMappingRepo) Upsert(ctx context.Context, mapping *models.ValueMapping) (bool, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, mapping)
	}
	return true, nil
}

func (m *mockValueMappingRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockValueMappingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ValueMapping, error) {
	return nil, apperrors.ErrNotFound
}

func (m *mockValueMappingRepo) FindByKey(ctx context.Context, connectionID uuid.UUID, table, field, rawValue string) (*models.ValueMapping, error) {
	if m.FindByKeyFunc != nil {
		return m.FindByKeyFunc(ctx, connectionID, table, field, rawValue)
	}
	return nil, nil
}

func (m *mockValueMappingRepo) ListExpanded(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error) {
	if m.ListExpandedFunc != nil {
		return m.ListExpandedFunc(ctx, connectionID, table, field)
	}
	return nil, nil
}

var (
	_ repositories.CanonicalValueRepository = (*mockCanonicalRepo)(nil)
	_ repositories.DimensionRepository      = (*mockDimensionRepo)(nil)
	_ repositories.SettingsRepository       = (*mockSettingsRepo)(nil)
	_ repositories.FieldMappingRepository   = (*mockFieldMappingRepo)(nil)
	_ repositories.SampleRepository         = (*mockSampleRepo)(nil)
	_ repositories.ValueMappingRepository   = (*mockValueMappingRepo)(nil)
)
