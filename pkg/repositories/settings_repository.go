package repositories

import (
	"context"
	"fmt"

	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

// SettingsRepository provides access to the single matcher settings row.
type SettingsRepository interface {
	Get(ctx context.Context) (models.MatchSettings, error)
	Save(ctx context.Context, settings models.MatchSettings) error
}

type settingsRepository struct {
	db database.Querier
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db database.Querier) SettingsRepository {
	return &settingsRepository{db: db}
}

var _ SettingsRepository = (*settingsRepository)(nil)

func (r *settingsRepository) Get(ctx context.Context) (models.MatchSettings, error) {
	query := `
		SELECT match_threshold, top_k, matcher_backend, embedding_model,
		       llm_mode, llm_provider, llm_model, llm_api_base, llm_api_key,
		       default_dimension, updated_at
		FROM engine_match_settings
		WHERE id = 1`

	var s models.MatchSettings
	var llmModel, llmAPIBase, llmAPIKey *string

	err := r.db.QueryRow(ctx, query).Scan(
		&s.MatchThreshold,
		&s.TopK,
		&s.MatcherBackend,
		&s.EmbeddingModel,
		&s.LLMMode,
		&s.LLMProvider,
		&llmModel,
		&llmAPIBase,
		&llmAPIKey,
		&s.DefaultDimension,
		&s.UpdatedAt,
	)
	if err != nil {
		return models.MatchSettings{}, fmt.Errorf("failed to load match settings: %w", err)
	}

	s.LLMModel = derefString(llmModel)
	s.LLMAPIBase = derefString(llmAPIBase)
	s.LLMAPIKey = derefString(llmAPIKey)

	return s, nil
}

func (r *settingsRepository) Save(ctx context.Context, settings models.MatchSettings) error {
	query := `
		UPDATE engine_match_settings
		SET match_threshold = $1, top_k = $2, matcher_backend = $3,
		    embedding_model = $4, llm_mode = $5, llm_provider = $6,
		    llm_model = $7, llm_api_base = $8, llm_api_key = $9,
		    default_dimension = $10, updated_at = $11
		WHERE id = 1`

	_, err := r.db.Exec(ctx, query,
		settings.MatchThreshold,
		settings.TopK,
		settings.MatcherBackend,
		settings.EmbeddingModel,
		settings.LLMMode,
		settings.LLMProvider,
		nullString(settings.LLMModel),
		nullString(settings.LLMAPIBase),
		nullString(settings.LLMAPIKey),
		settings.DefaultDimension,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match settings: %w", err)
	}

	return nil
}
