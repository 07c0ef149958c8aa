package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/jsonutil"
	"github.com/refdatahub/refdata-engine/pkg/llm"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// suggestionLimit caps relaxed-threshold suggestions attached to unmatched
// values.
const suggestionLimit = 5

// MatcherService proposes canonical values for raw source values.
type MatcherService interface {
	// Propose returns up to topK candidates scoring at or above the match
	// threshold. A zero topK uses the configured default. An empty dimension
	// falls back to the configured default dimension.
	Propose(ctx context.Context, rawValue, dimension string, topK int) ([]models.MatchCandidate, error)

	// Session snapshots settings and the dimension's candidates for scoring
	// many raw values against the same corpus.
	Session(ctx context.Context, dimension string) (MatchSession, error)
}

// MatchSession scores raw values against one dimension's candidate set.
type MatchSession interface {
	// Propose returns only candidates at or above the match threshold.
	Propose(ctx context.Context, rawValue string, topK int) ([]models.MatchCandidate, error)
	// Rank returns the full scored ranking with no threshold applied, for
	// callers that filter at a relaxed threshold themselves.
	Rank(ctx context.Context, rawValue string, topK int) ([]models.MatchCandidate, error)
	Settings() models.MatchSettings
	// Dimension is the resolved dimension code, after default substitution.
	Dimension() string
}

type matcherService struct {
	dimensionRepo repositories.DimensionRepository
	canonicalRepo repositories.CanonicalValueRepository
	settingsRepo  repositories.SettingsRepository
	factory       llm.ClientFactory
	timeout       time.Duration
	logger        *zap.Logger
}

// NewMatcherService creates a MatcherService.
func NewMatcherService(
	dimensionRepo repositories.DimensionRepository,
	canonicalRepo repositories.CanonicalValueRepository,
	settingsRepo repositories.SettingsRepository,
	factory llm.ClientFactory,
	timeout time.Duration,
	logger *zap.Logger,
) MatcherService {
	return &matcherService{
		dimensionRepo: dimensionRepo,
		canonicalRepo: canonicalRepo,
		settingsRepo:  settingsRepo,
		factory:       factory,
		timeout:       timeout,
		logger:        logger.Named("matcher"),
	}
}

var _ MatcherService = (*matcherService)(nil)

func (s *matcherService) Propose(ctx context.Context, rawValue, dimension string, topK int) ([]models.MatchCandidate, error) {
	session, err := s.Session(ctx, dimension)
	if err != nil {
		return nil, err
	}
	return session.Propose(ctx, rawValue, topK)
}

func (s *matcherService) Session(ctx context.Context, dimension string) (MatchSession, error) {
	settings, err := s.settingsRepo.Get(ctx)
	if err != nil {
		return nil, err
	}

	if dimension == "" {
		dimension = settings.DefaultDimension
	}

	// An unregistered dimension is a caller error, not an empty corpus.
	if _, err := s.dimensionRepo.GetByCode(ctx, dimension); err != nil {
		if err == apperrors.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownDimension, dimension)
		}
		return nil, err
	}

	candidates, err := s.canonicalRepo.List(ctx, dimension)
	if err != nil {
		return nil, err
	}

	return &matchSession{
		service:    s,
		settings:   settings,
		dimension:  dimension,
		candidates: candidates,
		strategy:   s.selectStrategy(settings, candidates),
	}, nil
}

// selectStrategy picks the scoring backend for a session. The LLM strategy
// carries the embedding strategy as its fallback so backend outages degrade
// instead of failing the request.
func (s *matcherService) selectStrategy(settings models.MatchSettings, candidates []*models.CanonicalValue) scoringStrategy {
	embedding := s.embeddingStrategy(settings, candidates)
	if settings.MatcherBackend == models.BackendLLM {
		return &llmStrategy{
			service:  s,
			settings: settings,
			fallback: embedding,
		}
	}
	return embedding
}

func (s *matcherService) embeddingStrategy(settings models.MatchSettings, candidates []*models.CanonicalValue) scoringStrategy {
	if settings.EmbeddingModel == models.EmbeddingModelTFIDF {
		labels := make([]string, len(candidates))
		texts := make([]string, len(candidates))
		for i, c := range candidates {
			labels[i] = c.CanonicalLabel
			texts[i] = c.MatchText()
		}
		return &lexicalStrategy{scorer: newLexicalScorer(labels, texts)}
	}
	return &embeddingStrategy{service: s, settings: settings}
}

// matchSession implements MatchSession.
type matchSession struct {
	service    *matcherService
	settings   models.MatchSettings
	dimension  string
	candidates []*models.CanonicalValue
	strategy   scoringStrategy
}

func (m *matchSession) Settings() models.MatchSettings {
	return m.settings
}

func (m *matchSession) Dimension() string {
	return m.dimension
}

func (m *matchSession) Propose(ctx context.Context, rawValue string, topK int) ([]models.MatchCandidate, error) {
	results, err := m.Rank(ctx, rawValue, topK)
	if err != nil {
		return nil, err
	}

	// Only candidates at or above the configured threshold count as matches.
	// The ranking is sorted, so the first miss ends the list.
	for i, c := range results {
		if c.Score < m.settings.MatchThreshold {
			return results[:i], nil
		}
	}
	return results, nil
}

func (m *matchSession) Rank(ctx context.Context, rawValue string, topK int) ([]models.MatchCandidate, error) {
	if topK <= 0 {
		topK = m.settings.TopK
	}
	if len(m.candidates) == 0 {
		return []models.MatchCandidate{}, nil
	}

	scores, err := m.strategy.scoreCandidates(ctx, rawValue, m.candidates)
	if err != nil {
		return nil, err
	}

	results := make([]models.MatchCandidate, len(m.candidates))
	for i, c := range m.candidates {
		results[i] = models.MatchCandidate{
			CanonicalID:    c.ID,
			CanonicalLabel: c.CanonicalLabel,
			Dimension:      c.Dimension,
			Description:    c.Description,
			Score:          round4(models.ClampScore(scores[i])),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return strings.ToLower(results[i].CanonicalLabel) < strings.ToLower(results[j].CanonicalLabel)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// round4 keeps scores stable across backends for API consumers.
func round4(score float64) float64 {
	return math.Round(score*10000) / 10000
}

// ============================================================================
// Scoring strategies
// ============================================================================

type scoringStrategy interface {
	scoreCandidates(ctx context.Context, query string, candidates []*models.CanonicalValue) ([]float64, error)
}

// lexicalStrategy is the deterministic in-process backend.
type lexicalStrategy struct {
	scorer *lexicalScorer
}

func (s *lexicalStrategy) scoreCandidates(ctx context.Context, query string, candidates []*models.CanonicalValue) ([]float64, error) {
	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = s.scorer.Score(query, i)
	}
	return scores, nil
}

// embeddingStrategy scores via a remote embedding endpoint.
type embeddingStrategy struct {
	service  *matcherService
	settings models.MatchSettings
}

func (s *embeddingStrategy) scoreCandidates(ctx context.Context, query string, candidates []*models.CanonicalValue) ([]float64, error) {
	client, err := s.service.factory.CreateEmbeddingClient(&llm.Config{
		Endpoint: embeddingEndpoint(s.settings),
		Model:    s.settings.EmbeddingModel,
		APIKey:   s.settings.LLMAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMatcherBackendUnavailable, err)
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, query)
	for _, c := range candidates {
		inputs = append(inputs, c.MatchText())
	}

	ctx, cancel := context.WithTimeout(ctx, s.service.timeout)
	defer cancel()

	vectors, err := client.CreateEmbeddings(ctx, inputs, s.settings.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMatcherBackendUnavailable, err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			apperrors.ErrMatcherBackendUnavailable, len(inputs), len(vectors))
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = cosine32(vectors[0], vectors[i+1])
	}
	return scores, nil
}

func embeddingEndpoint(settings models.MatchSettings) string {
	if settings.LLMAPIBase != "" {
		return settings.LLMAPIBase
	}
	return defaultOpenAIBase
}

// llmStrategy asks a chat model to score candidates, degrading to the
// embedding strategy when the call or the parse fails.
type llmStrategy struct {
	service  *matcherService
	settings models.MatchSettings
	fallback scoringStrategy
}

const llmScoringSystem = "You score how well a raw data value matches each canonical reference value. " +
	"Respond with only a JSON array of {\"id\": string, \"score\": number} objects, " +
	"one per candidate, scores between 0 and 1."

func (s *llmStrategy) scoreCandidates(ctx context.Context, query string, candidates []*models.CanonicalValue) ([]float64, error) {
	scores, err := s.scoreLLM(ctx, query, candidates)
	if err != nil {
		s.service.logger.Warn("LLM scoring failed, falling back to embedding backend",
			zap.String("raw_value", query),
			zap.Error(err))
		return s.fallback.scoreCandidates(ctx, query, candidates)
	}
	return scores, nil
}

func (s *llmStrategy) scoreLLM(ctx context.Context, query string, candidates []*models.CanonicalValue) ([]float64, error) {
	client, err := s.service.factory.CreateChatClient(chatConfig(s.settings))
	if err != nil {
		return nil, err
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Raw value: %q\n\nCandidates:\n", query)
	for _, c := range candidates {
		fmt.Fprintf(&prompt, "- id=%s label=%q", c.ID, c.CanonicalLabel)
		if c.Description != "" {
			fmt.Fprintf(&prompt, " description=%q", c.Description)
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString("\nScore every candidate.")

	ctx, cancel := context.WithTimeout(ctx, s.service.timeout)
	defer cancel()

	response, err := client.GenerateResponse(ctx, prompt.String(), llmScoringSystem, 0)
	if err != nil {
		return nil, err
	}

	// Models occasionally quote numbers or emit numeric ids, so both fields
	// parse flexibly.
	type scoredCandidate struct {
		ID    json.RawMessage `json:"id"`
		Score json.RawMessage `json:"score"`
	}
	parsed, err := llm.ParseJSONResponse[[]scoredCandidate](response)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]float64, len(parsed))
	for _, p := range parsed {
		id, err := uuid.Parse(jsonutil.FlexibleStringValue(p.ID))
		if err != nil {
			continue
		}
		if score, ok := jsonutil.FlexibleFloat(p.Score); ok {
			byID[id] = score
		}
	}

	// Candidates the model skipped score zero rather than failing the batch.
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = byID[c.ID]
	}
	return scores, nil
}

// chatConfig maps matcher settings onto a client config. Offline mode always
// speaks the OpenAI-compatible protocol to the configured base URL.
func chatConfig(settings models.MatchSettings) *llm.Config {
	cfg := &llm.Config{
		Model:  settings.LLMModel,
		APIKey: settings.LLMAPIKey,
	}
	if settings.LLMMode == models.LLMModeOffline {
		cfg.Endpoint = settings.LLMAPIBase
		return cfg
	}
	cfg.Provider = string(settings.LLMProvider)
	cfg.Endpoint = embeddingEndpoint(settings)
	return cfg
}
