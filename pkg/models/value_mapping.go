package models

import (
	"time"

	"github.com/google/uuid"
)

// MappingStatus is the provenance state of a value mapping.
type MappingStatus string

const (
	// MappingStatusSuggested marks a mapping inferred by the matcher and not
	// yet confirmed by an operator.
	MappingStatusSuggested MappingStatus = "suggested"
	// MappingStatusApproved marks a mapping confirmed by a human.
	MappingStatusApproved MappingStatus = "approved"
)

// Valid reports whether s is a known mapping status.
func (s MappingStatus) Valid() bool {
	return s == MappingStatusSuggested || s == MappingStatusApproved
}

// ValueMapping is the ledger record linking a raw source value to a
// canonical value. At most one mapping exists per
// (connection_id, source_table, source_field, raw_value).
type ValueMapping struct {
	ID             uuid.UUID     `json:"id"`
	ConnectionID   uuid.UUID     `json:"connection_id"`
	SourceTable    string        `json:"source_table"`
	SourceField    string        `json:"source_field"`
	RawValue       string        `json:"raw_value"`
	CanonicalID    uuid.UUID     `json:"canonical_id"`
	Status         MappingStatus `json:"status"`
	Confidence     *float64      `json:"confidence,omitempty"`
	SuggestedLabel string        `json:"suggested_label,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ValueMappingExpanded joins the resolved canonical label and dimension onto
// a ledger record for listing endpoints.
type ValueMappingExpanded struct {
	ValueMapping
	CanonicalLabel string `json:"canonical_label"`
	RefDimension   string `json:"ref_dimension"`
}
