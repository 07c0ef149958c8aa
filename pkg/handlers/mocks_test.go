package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
	"github.com/refdatahub/refdata-engine/pkg/services"
	"github.com/refdatahub/refdata-engine/pkg/tabular"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockMatcherService implements services.MatcherService for handler tests.
type mockMatcherService struct {
	matches    []models.MatchCandidate
	dimension  string
	settings   models.MatchSettings
	sessionErr error
	proposeErr error
}

func (m *mockMatcherService) Propose(ctx context.Context, rawValue, dimension string, topK int) ([]models.MatchCandidate, error) {
	if m.proposeErr != nil {
		return nil, m.proposeErr
	}
	return m.matches, nil
}

func (m *mockMatcherService) Session(ctx context.Context, dimension string) (services.MatchSession, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	resolved := dimension
	if resolved == "" {
		resolved = m.dimension
	}
	return &mockMatchSession{parent: m, dimension: resolved}, nil
}

type mockMatchSession struct {
	parent    *mockMatcherService
	dimension string
}

func (s *mockMatchSession) Propose(ctx context.Context, rawValue string, topK int) ([]models.MatchCandidate, error) {
	if s.parent.proposeErr != nil {
		return nil, s.parent.proposeErr
	}
	return s.parent.matches, nil
}

func (s *mockMatchSession) Rank(ctx context.Context, rawValue string, topK int) ([]models.MatchCandidate, error) {
	return s.Propose(ctx, rawValue, topK)
}

func (s *mockMatchSession) Settings() models.MatchSettings { return s.parent.settings }
func (s *mockMatchSession) Dimension() string              { return s.dimension }

// mockSettingsService implements services.SettingsService.
type mockSettingsService struct {
	settings  models.MatchSettings
	getErr    error
	updateErr error
	updated   *models.MatchSettingsUpdate
}

func (m *mockSettingsService) Get(ctx context.Context) (models.MatchSettings, error) {
	return m.settings, m.getErr
}

func (m *mockSettingsService) Update(ctx context.Context, update models.MatchSettingsUpdate) (models.MatchSettings, error) {
	if m.updateErr != nil {
		return models.MatchSettings{}, m.updateErr
	}
	m.updated = &update
	return m.settings, nil
}

// mockValueMappingService implements services.ValueMappingService.
type mockValueMappingService struct {
	mapping   *models.ValueMapping
	expanded  []*models.ValueMappingExpanded
	created   bool
	recordErr error
	getErr    error
	deleted   []uuid.UUID
}

func (m *mockValueMappingService) Record(ctx context.Context, mapping *models.ValueMapping) (bool, error) {
	if m.recordErr != nil {
		return false, m.recordErr
	}
	m.mapping = mapping
	return m.created, nil
}

func (m *mockValueMappingService) Create(ctx context.Context, mapping *models.ValueMapping) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mapping = mapping
	return nil
}

func (m *mockValueMappingService) Delete(ctx context.Context, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockValueMappingService) Get(ctx context.Context, id uuid.UUID) (*models.ValueMapping, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.mapping, nil
}

func (m *mockValueMappingService) List(ctx context.Context, connectionID uuid.UUID, table, field string) ([]*models.ValueMappingExpanded, error) {
	return m.expanded, nil
}

// mockBulkImportService implements services.BulkImportService.
type mockBulkImportService struct {
	preview    *models.BulkImportPreview
	result     *models.BulkImportResult
	previewErr error
	runErr     error
	lastTable  *tabularTableCapture
}

type tabularTableCapture struct {
	columns []string
	rows    int
	mapping models.ImportMapping
	dryRun  bool
}

func (m *mockBulkImportService) Preview(ctx context.Context, table *tabular.Table, sheets []string, sheet, sourceName, defaultDimension string) (*models.BulkImportPreview, error) {
	if m.previewErr != nil {
		return nil, m.previewErr
	}
	m.lastTable = &tabularTableCapture{columns: table.Columns, rows: len(table.Rows)}
	return m.preview, nil
}

func (m *mockBulkImportService) Run(ctx context.Context, table *tabular.Table, mapping models.ImportMapping, dryRun bool, strategy models.DuplicateStrategy) (*models.BulkImportResult, error) {
	m.lastTable = &tabularTableCapture{columns: table.Columns, rows: len(table.Rows), mapping: mapping, dryRun: dryRun}
	return m.result, m.runErr
}

// mockConnectionRepo implements repositories.ConnectionRepository.
type mockConnectionRepo struct {
	connections []*models.SourceConnection
	connection  *models.SourceConnection
	getErr      error
}

func (m *mockConnectionRepo) Create(ctx context.Context, conn *models.SourceConnection) error {
	conn.ID = uuid.New()
	m.connection = conn
	return nil
}

func (m *mockConnectionRepo) Update(ctx context.Context, conn *models.SourceConnection) error {
	m.connection = conn
	return nil
}

func (m *mockConnectionRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (m *mockConnectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SourceConnection, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.connection, nil
}

func (m *mockConnectionRepo) List(ctx context.Context) ([]*models.SourceConnection, error) {
	return m.connections, nil
}

// Interface assertions keep the mocks honest.
var (
	_ services.MatcherService           = (*mockMatcherService)(nil)
	_ services.MatchSession             = (*mockMatchSession)(nil)
	_ services.SettingsService          = (*mockSettingsService)(nil)
	_ services.ValueMappingService      = (*mockValueMappingService)(nil)
	_ services.BulkImportService        = (*mockBulkImportService)(nil)
	_ repositories.ConnectionRepository = (*mockConnectionRepo)(nil)
)
