package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/llm"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

func defaultTestSettings() models.MatchSettings {
	return models.MatchSettings{
		MatchThreshold:   0.6,
		TopK:             5,
		MatcherBackend:   models.BackendEmbedding,
		EmbeddingModel:   models.EmbeddingModelTFIDF,
		LLMMode:          models.LLMModeOnline,
		LLMProvider:      models.ProviderOpenAI,
		DefaultDimension: "general",
	}
}

func maritalStatusValues() []*models.CanonicalValue {
	labels := []string{"Married", "Single", "Divorced", "Widowed"}
	values := make([]*models.CanonicalValue, len(labels))
	for i, label := range labels {
		values[i] = &models.CanonicalValue{
			ID:             uuid.New(),
			Dimension:      "marital_status",
			CanonicalLabel: label,
		}
	}
	return values
}

// anyDimensionRepo resolves every code, for tests that are not about the
// registry check.
func anyDimensionRepo() *mockDimensionRepo {
	return &mockDimensionRepo{
		GetByCodeFunc: func(ctx context.Context, code string) (*models.Dimension, error) {
			return &models.Dimension{Code: code}, nil
		},
	}
}

func newTestMatcher(settings models.MatchSettings, values []*models.CanonicalValue, factory llm.ClientFactory) MatcherService {
	canonicalRepo := &mockCanonicalRepo{
		ListFunc: func(ctx context.Context, dimension string) ([]*models.CanonicalValue, error) {
			return values, nil
		},
	}
	if factory == nil {
		factory = &llm.MockFactory{}
	}
	return NewMatcherService(anyDimensionRepo(), canonicalRepo, &mockSettingsRepo{settings: settings},
		factory, time.Second, zap.NewNop())
}

func TestRankLexicalOrdersTypoFirst(t *testing.T) {
	matcher := newTestMatcher(defaultTestSettings(), maritalStatusValues(), nil)

	session, err := matcher.Session(context.Background(), "marital_status")
	require.NoError(t, err)

	candidates, err := session.Rank(context.Background(), "Marreid", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	assert.Equal(t, "Married", candidates[0].CanonicalLabel)
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestProposeFiltersBelowThreshold(t *testing.T) {
	settings := defaultTestSettings()
	settings.MatchThreshold = 0.9
	matcher := newTestMatcher(settings, maritalStatusValues(), nil)

	session, err := matcher.Session(context.Background(), "marital_status")
	require.NoError(t, err)

	// The full ranking still scores everything.
	ranked, err := session.Rank(context.Background(), "completely unrelated gibberish", 0)
	require.NoError(t, err)
	assert.Len(t, ranked, 4)

	// None of those scores clear the threshold, so nothing is proposed.
	matches, err := session.Propose(context.Background(), "completely unrelated gibberish", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestProposeExactMatchClearsThreshold(t *testing.T) {
	matcher := newTestMatcher(defaultTestSettings(), maritalStatusValues(), nil)

	candidates, err := matcher.Propose(context.Background(), "married", "marital_status", 0)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)

	assert.Equal(t, "Married", candidates[0].CanonicalLabel)
	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Score, 0.6)
	}
}

func TestRankTopKCap(t *testing.T) {
	matcher := newTestMatcher(defaultTestSettings(), maritalStatusValues(), nil)

	session, err := matcher.Session(context.Background(), "marital_status")
	require.NoError(t, err)

	candidates, err := session.Rank(context.Background(), "married", 2)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)
}

func TestProposeDefaultDimension(t *testing.T) {
	var requested string
	canonicalRepo := &mockCanonicalRepo{
		ListFunc: func(ctx context.Context, dimension string) ([]*models.CanonicalValue, error) {
			requested = dimension
			return nil, nil
		},
	}
	matcher := NewMatcherService(anyDimensionRepo(), canonicalRepo, &mockSettingsRepo{settings: defaultTestSettings()},
		&llm.MockFactory{}, time.Second, zap.NewNop())

	candidates, err := matcher.Propose(context.Background(), "anything", "", 0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Equal(t, "general", requested)
}

func TestSessionUnknownDimension(t *testing.T) {
	dims := &mockDimensionRepo{} // every lookup misses
	matcher := NewMatcherService(dims, &mockCanonicalRepo{}, &mockSettingsRepo{settings: defaultTestSettings()},
		&llm.MockFactory{}, time.Second, zap.NewNop())

	_, err := matcher.Propose(context.Background(), "Marreid", "no_such_dimension", 0)
	assert.ErrorIs(t, err, apperrors.ErrUnknownDimension)
}

func TestProposeLLMBackend(t *testing.T) {
	values := maritalStatusValues()
	settings := defaultTestSettings()
	settings.MatcherBackend = models.BackendLLM
	settings.LLMModel = "gpt-4o"

	factory := &llm.MockFactory{
		Chat: &llm.MockChatClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
				// Score only two candidates; the rest default to zero.
				return fmt.Sprintf(`[{"id": %q, "score": 0.91}, {"id": %q, "score": 0.34}]`,
					values[0].ID, values[1].ID), nil
			},
		},
	}

	matcher := newTestMatcher(settings, values, factory)

	session, err := matcher.Session(context.Background(), "marital_status")
	require.NoError(t, err)

	candidates, err := session.Rank(context.Background(), "wed", 0)
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	assert.Equal(t, "Married", candidates[0].CanonicalLabel)
	assert.InDelta(t, 0.91, candidates[0].Score, 1e-9)
	assert.Equal(t, "Single", candidates[1].CanonicalLabel)

	// Unscored candidates tie at zero and sort by label.
	assert.Equal(t, "Divorced", candidates[2].CanonicalLabel)
	assert.Equal(t, "Widowed", candidates[3].CanonicalLabel)

	// Only the 0.91 clears the 0.6 threshold.
	matches, err := session.Propose(context.Background(), "wed", 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Married", matches[0].CanonicalLabel)
}

func TestProposeLLMClampsScores(t *testing.T) {
	values := maritalStatusValues()
	settings := defaultTestSettings()
	settings.MatcherBackend = models.BackendLLM

	factory := &llm.MockFactory{
		Chat: &llm.MockChatClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
				return fmt.Sprintf(`[{"id": %q, "score": 1.7}, {"id": %q, "score": -0.2}]`,
					values[0].ID, values[1].ID), nil
			},
		},
	}

	candidates, err := newTestMatcher(settings, values, factory).
		Propose(context.Background(), "x", "marital_status", 0)
	require.NoError(t, err)

	assert.Equal(t, 1.0, candidates[0].Score)
	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestProposeLLMFailureFallsBack(t *testing.T) {
	settings := defaultTestSettings()
	settings.MatcherBackend = models.BackendLLM

	factory := &llm.MockFactory{
		Chat: &llm.MockChatClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
				return "", errors.New("503 service unavailable")
			},
		},
	}

	candidates, err := newTestMatcher(settings, maritalStatusValues(), factory).
		Propose(context.Background(), "married", "marital_status", 0)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "Married", candidates[0].CanonicalLabel)
}

func TestProposeGarbageParseFallsBack(t *testing.T) {
	settings := defaultTestSettings()
	settings.MatcherBackend = models.BackendLLM

	factory := &llm.MockFactory{
		Chat: &llm.MockChatClient{
			GenerateResponseFunc: func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
				return "I am not JSON", nil
			},
		},
	}

	candidates, err := newTestMatcher(settings, maritalStatusValues(), factory).
		Propose(context.Background(), "single", "marital_status", 0)
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, "Single", candidates[0].CanonicalLabel)
}

func TestProposeEmptyCandidateSet(t *testing.T) {
	matcher := newTestMatcher(defaultTestSettings(), nil, nil)

	candidates, err := matcher.Propose(context.Background(), "anything", "marital_status", 0)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, round4(0.12345))
	assert.Equal(t, 1.0, round4(1.0))
	assert.Equal(t, 0.0, round4(0.00001))
}
