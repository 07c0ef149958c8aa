package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// SettingsService manages the matcher configuration row.
type SettingsService interface {
	Get(ctx context.Context) (models.MatchSettings, error)
	// Update folds a partial change into the stored settings and returns the
	// result. Validation runs on the merged value so a partial update cannot
	// leave an invalid combination behind.
	Update(ctx context.Context, update models.MatchSettingsUpdate) (models.MatchSettings, error)
}

type settingsService struct {
	repo   repositories.SettingsRepository
	logger *zap.Logger
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(repo repositories.SettingsRepository, logger *zap.Logger) SettingsService {
	return &settingsService{repo: repo, logger: logger.Named("settings")}
}

var _ SettingsService = (*settingsService)(nil)

func (s *settingsService) Get(ctx context.Context) (models.MatchSettings, error) {
	return s.repo.Get(ctx)
}

func (s *settingsService) Update(ctx context.Context, update models.MatchSettingsUpdate) (models.MatchSettings, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		return models.MatchSettings{}, err
	}

	next := current.Apply(update, time.Now())
	if err := next.Validate(); err != nil {
		return models.MatchSettings{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	if err := s.repo.Save(ctx, next); err != nil {
		return models.MatchSettings{}, err
	}

	s.logger.Info("Updated match settings",
		zap.Float64("match_threshold", next.MatchThreshold),
		zap.Int("top_k", next.TopK),
		zap.String("matcher_backend", string(next.MatcherBackend)),
		zap.String("llm_mode", string(next.LLMMode)))

	return next, nil
}
