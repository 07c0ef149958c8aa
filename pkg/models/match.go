package models

import "github.com/google/uuid"

// MatchCandidate is an ephemeral, scored suggestion produced by the matcher.
// Never persisted.
type MatchCandidate struct {
	CanonicalID    uuid.UUID `json:"canonical_id"`
	CanonicalLabel string    `json:"canonical_label"`
	Dimension      string    `json:"dimension"`
	Description    string    `json:"description,omitempty"`
	Score          float64   `json:"score"`
}

// MatchType records which path resolved a raw value during aggregation.
type MatchType string

const (
	// MatchTypeMapping means the value mapping ledger resolved the value.
	MatchTypeMapping MatchType = "mapping"
	// MatchTypeSemantic means the matcher resolved it at the strict threshold.
	MatchTypeSemantic MatchType = "semantic"
)

// UnmatchedValue is a distinct raw value that failed the strict threshold,
// annotated with relaxed-threshold suggestions so operators see near-misses.
type UnmatchedValue struct {
	RawValue        string           `json:"raw_value"`
	OccurrenceCount int              `json:"occurrence_count"`
	Suggestions     []MatchCandidate `json:"suggestions"`
}

// MatchedValue is a distinct raw value that resolved to a canonical value,
// annotated with the path and confidence that resolved it.
type MatchedValue struct {
	RawValue        string    `json:"raw_value"`
	OccurrenceCount int       `json:"occurrence_count"`
	CanonicalID     uuid.UUID `json:"canonical_id"`
	CanonicalLabel  string    `json:"canonical_label"`
	MatchType       MatchType `json:"match_type"`
	Confidence      float64   `json:"confidence"`
}

// FieldMatchStats is the derived per-field coverage report. Totals are sums
// of occurrence counts, not distinct-value counts. Never stored.
type FieldMatchStats struct {
	MappingID       uuid.UUID        `json:"mapping_id"`
	SourceTable     string           `json:"source_table"`
	SourceField     string           `json:"source_field"`
	RefDimension    string           `json:"ref_dimension"`
	TotalValues     int              `json:"total_values"`
	MatchedValues   int              `json:"matched_values"`
	UnmatchedValues int              `json:"unmatched_values"`
	MatchRate       float64          `json:"match_rate"`
	TopUnmatched    []UnmatchedValue `json:"top_unmatched"`
	TopMatched      []MatchedValue   `json:"top_matched"`
}

// UnmatchedValueRecord flattens an unmatched value with its field context
// for the connection-wide unmatched listing.
type UnmatchedValueRecord struct {
	MappingID       uuid.UUID        `json:"mapping_id"`
	SourceTable     string           `json:"source_table"`
	SourceField     string           `json:"source_field"`
	RefDimension    string           `json:"ref_dimension"`
	RawValue        string           `json:"raw_value"`
	OccurrenceCount int              `json:"occurrence_count"`
	Suggestions     []MatchCandidate `json:"suggestions"`
}

// ClampScore bounds a confidence or similarity score to [0,1].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
