package models

import (
	"fmt"
	"time"
)

func errInvalidEnum(field, value string) error {
	return fmt.Errorf("invalid %s %q", field, value)
}

// MatcherBackend selects the similarity backend.
type MatcherBackend string

const (
	BackendEmbedding MatcherBackend = "embedding"
	BackendLLM       MatcherBackend = "llm"
)

// LLMMode selects between a hosted API and a local OpenAI-compatible endpoint.
type LLMMode string

const (
	LLMModeOnline  LLMMode = "online"
	LLMModeOffline LLMMode = "offline"
)

// LLMProvider selects the wire protocol for online LLM calls.
type LLMProvider string

const (
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// EmbeddingModelTFIDF is the in-process scorer used when no embedding
// endpoint is configured. It needs no network and is fully deterministic.
const EmbeddingModelTFIDF = "tfidf"

// MatchSettings are the operator-tunable matcher knobs. A single row is
// persisted; services receive the value by copy per request, never through
// shared mutable state. Updates go through Apply, a pure function.
type MatchSettings struct {
	MatchThreshold   float64        `json:"match_threshold"`
	TopK             int            `json:"top_k"`
	MatcherBackend   MatcherBackend `json:"matcher_backend"`
	EmbeddingModel   string         `json:"embedding_model"`
	LLMMode          LLMMode        `json:"llm_mode"`
	LLMProvider      LLMProvider    `json:"llm_provider"`
	LLMModel         string         `json:"llm_model,omitempty"`
	LLMAPIBase       string         `json:"llm_api_base,omitempty"`
	LLMAPIKey        string         `json:"-"`
	DefaultDimension string         `json:"default_dimension"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// RelaxedThreshold is the lowered cutoff used for near-miss suggestions.
func (s MatchSettings) RelaxedThreshold() float64 {
	relaxed := s.MatchThreshold * 0.75
	if relaxed < 0.2 {
		relaxed = 0.2
	}
	return relaxed
}

// MatchSettingsUpdate carries a partial settings change. Nil fields are
// left untouched.
type MatchSettingsUpdate struct {
	MatchThreshold   *float64        `json:"match_threshold,omitempty"`
	TopK             *int            `json:"top_k,omitempty"`
	MatcherBackend   *MatcherBackend `json:"matcher_backend,omitempty"`
	EmbeddingModel   *string         `json:"embedding_model,omitempty"`
	LLMMode          *LLMMode        `json:"llm_mode,omitempty"`
	LLMProvider      *LLMProvider    `json:"llm_provider,omitempty"`
	LLMModel         *string         `json:"llm_model,omitempty"`
	LLMAPIBase       *string         `json:"llm_api_base,omitempty"`
	LLMAPIKey        *string         `json:"llm_api_key,omitempty"`
	DefaultDimension *string         `json:"default_dimension,omitempty"`
}

// Apply returns a new MatchSettings with the update folded in. The receiver
// is not modified. Threshold and top_k are clamped to their legal ranges so
// an out-of-range value can never be persisted.
func (s MatchSettings) Apply(u MatchSettingsUpdate, now time.Time) MatchSettings {
	next := s
	if u.MatchThreshold != nil {
		next.MatchThreshold = ClampScore(*u.MatchThreshold)
	}
	if u.TopK != nil {
		next.TopK = *u.TopK
		if next.TopK < 1 {
			next.TopK = 1
		}
	}
	if u.MatcherBackend != nil {
		next.MatcherBackend = *u.MatcherBackend
	}
	if u.EmbeddingModel != nil {
		next.EmbeddingModel = *u.EmbeddingModel
	}
	if u.LLMMode != nil {
		next.LLMMode = *u.LLMMode
	}
	if u.LLMProvider != nil {
		next.LLMProvider = *u.LLMProvider
	}
	if u.LLMModel != nil {
		next.LLMModel = *u.LLMModel
	}
	if u.LLMAPIBase != nil {
		next.LLMAPIBase = *u.LLMAPIBase
	}
	if u.LLMAPIKey != nil {
		next.LLMAPIKey = *u.LLMAPIKey
	}
	if u.DefaultDimension != nil && *u.DefaultDimension != "" {
		next.DefaultDimension = *u.DefaultDimension
	}
	next.UpdatedAt = now
	return next
}

// Validate checks the enum fields after an update.
func (s MatchSettings) Validate() error {
	switch s.MatcherBackend {
	case BackendEmbedding, BackendLLM:
	default:
		return errInvalidEnum("matcher_backend", string(s.MatcherBackend))
	}
	switch s.LLMMode {
	case LLMModeOnline, LLMModeOffline:
	default:
		return errInvalidEnum("llm_mode", string(s.LLMMode))
	}
	switch s.LLMProvider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return errInvalidEnum("llm_provider", string(s.LLMProvider))
	}
	return nil
}

// MatchSettingsView is the API shape: the key itself is never echoed back.
type MatchSettingsView struct {
	MatchSettings
	LLMAPIKeySet bool `json:"llm_api_key_set"`
}

// View redacts the settings for API responses.
func (s MatchSettings) View() MatchSettingsView {
	return MatchSettingsView{MatchSettings: s, LLMAPIKeySet: s.LLMAPIKey != ""}
}
