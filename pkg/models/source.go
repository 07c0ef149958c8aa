package models

import (
	"time"

	"github.com/google/uuid"
)

// SourceConnection is registry metadata for an external source system. The
// engine never connects to it; sampling is pushed in by the ingestion
// collaborator. The password is write-only and never serialized.
type SourceConnection struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	DBType    string    `json:"db_type"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Database  string    `json:"database"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Options   string    `json:"options,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PasswordSet reports whether a credential is stored, for API responses.
func (c *SourceConnection) PasswordSet() bool {
	return c.Password != ""
}

// SourceFieldMapping declares that a source field harmonizes to a reference
// dimension. It is the match statistics aggregator's unit of work.
type SourceFieldMapping struct {
	ID           uuid.UUID `json:"id"`
	ConnectionID uuid.UUID `json:"connection_id"`
	SourceTable  string    `json:"source_table"`
	SourceField  string    `json:"source_field"`
	RefDimension string    `json:"ref_dimension"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SourceSample is an aggregated raw value observed in a source field.
// Ingest upserts are additive on occurrence_count.
type SourceSample struct {
	ID              uuid.UUID `json:"id"`
	ConnectionID    uuid.UUID `json:"connection_id"`
	SourceTable     string    `json:"source_table"`
	SourceField     string    `json:"source_field"`
	RawValue        string    `json:"raw_value"`
	OccurrenceCount int       `json:"occurrence_count"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}
