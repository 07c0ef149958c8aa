package models

import (
	"time"

	"github.com/google/uuid"
)

// CanonicalValue is the authoritative, deduplicated record within a
// dimension that raw source values are reconciled against. Attributes keys
// are a subset of the dimension's extra-field keys; required fields must be
// non-null. No two values in a dimension share a case-normalized label.
type CanonicalValue struct {
	ID             uuid.UUID      `json:"id"`
	Dimension      string         `json:"dimension"`
	CanonicalLabel string         `json:"canonical_label"`
	Description    string         `json:"description,omitempty"`
	Attributes     map[string]any `json:"attributes"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MatchText returns the text the matcher scores against: the label, with the
// description appended when present.
func (cv *CanonicalValue) MatchText() string {
	if cv.Description != "" {
		return cv.CanonicalLabel + ". " + cv.Description
	}
	return cv.CanonicalLabel
}
