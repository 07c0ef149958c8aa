package models

import (
	"encoding/json"
	"fmt"
)

// ColumnRole is the closed set of roles a bulk-import column can play.
// Decoding rejects unknown strings so an invalid role fails at the API
// boundary instead of surfacing mid-import.
type ColumnRole string

const (
	RoleLabel       ColumnRole = "label"
	RoleDimension   ColumnRole = "dimension"
	RoleDescription ColumnRole = "description"
	RoleAttribute   ColumnRole = "attribute"
	RoleIgnore      ColumnRole = "ignore"
)

// Valid reports whether r is a known column role.
func (r ColumnRole) Valid() bool {
	switch r {
	case RoleLabel, RoleDimension, RoleDescription, RoleAttribute, RoleIgnore:
		return true
	}
	return false
}

// UnmarshalJSON implements json.Unmarshaler, rejecting unknown roles.
func (r *ColumnRole) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := ColumnRole(s)
	if !role.Valid() {
		return fmt.Errorf("invalid column role %q", s)
	}
	*r = role
	return nil
}

// ColumnAssignment binds a parsed column to a role. Attribute assignments
// carry a normalized key, a human-readable label, and a data type used when
// synthesizing a schema for a new dimension.
type ColumnAssignment struct {
	Column         string     `json:"column"`
	Role           ColumnRole `json:"role"`
	AttributeKey   string     `json:"attribute_key,omitempty"`
	AttributeLabel string     `json:"attribute_label,omitempty"`
	DataType       FieldType  `json:"data_type,omitempty"`
}

// ImportMapping is the caller-confirmed column mapping for a bulk import.
type ImportMapping struct {
	Columns []ColumnAssignment `json:"columns"`
	// DefaultDimension applies to rows when no dimension column is mapped.
	DefaultDimension string `json:"default_dimension,omitempty"`
	// CreateDimension opts in to synthesizing missing target dimensions from
	// the attribute-role columns.
	CreateDimension bool `json:"create_dimension,omitempty"`
	// DimensionLabel overrides the label of a synthesized dimension.
	DimensionLabel string `json:"dimension_label,omitempty"`
}

// ColumnPreview describes one parsed column with its inferred role.
type ColumnPreview struct {
	Name          string     `json:"name"`
	Role          ColumnRole `json:"role"`
	AttributeKey  string     `json:"attribute_key,omitempty"`
	DataType      FieldType  `json:"data_type,omitempty"`
	DistinctCount int        `json:"distinct_count"`
	SampleValues  []string   `json:"sample_values"`
}

// DimensionProposal describes a new dimension the importer would synthesize.
type DimensionProposal struct {
	Code        string       `json:"code"`
	Label       string       `json:"label"`
	ExtraFields []ExtraField `json:"extra_fields"`
}

// BulkImportPreview is the ephemeral dry-run artifact describing inferred
// column roles. Every inference is advisory; the caller may override any
// role before committing.
type BulkImportPreview struct {
	Columns           []ColumnPreview    `json:"columns"`
	RowCount          int                `json:"row_count"`
	Dimension         string             `json:"dimension,omitempty"`
	DimensionExists   bool               `json:"dimension_exists"`
	ProposedDimension *DimensionProposal `json:"proposed_dimension,omitempty"`
	Sheets            []string           `json:"sheets,omitempty"`
	Sheet             string             `json:"sheet,omitempty"`
}

// DuplicateStrategy is the operator's choice for rows colliding with
// existing canonical values.
type DuplicateStrategy string

const (
	// DuplicateStrategyNone means no strategy was supplied; the engine stops
	// for review when duplicates exist rather than guessing.
	DuplicateStrategyNone DuplicateStrategy = ""
	DuplicateStrategySkip DuplicateStrategy = "skip"
	// DuplicateStrategyUpdate overwrites description/attributes of the
	// colliding value; its id never changes.
	DuplicateStrategyUpdate DuplicateStrategy = "update"
)

// Valid reports whether s is a known strategy (including none).
func (s DuplicateStrategy) Valid() bool {
	switch s {
	case DuplicateStrategyNone, DuplicateStrategySkip, DuplicateStrategyUpdate:
		return true
	}
	return false
}

// BulkImportDuplicateRecord describes one row colliding with an existing
// canonical value, detected by the case-normalized label predicate.
type BulkImportDuplicateRecord struct {
	RowNumber           int             `json:"row_number"`
	Dimension           string          `json:"dimension"`
	CanonicalLabel      string          `json:"canonical_label"`
	ExistingValue       *CanonicalValue `json:"existing_value"`
	IncomingDescription string          `json:"incoming_description,omitempty"`
	IncomingAttributes  map[string]any  `json:"incoming_attributes"`
}

// BulkImportResult reports the outcome of a dry run or commit. Row-level
// errors are accumulated, never raised; a 10,000-row import reports 9,998
// successes and 2 errors.
type BulkImportResult struct {
	DryRun     bool                        `json:"dry_run"`
	Created    []*CanonicalValue           `json:"created"`
	Updated    []*CanonicalValue           `json:"updated"`
	Duplicates []BulkImportDuplicateRecord `json:"duplicates"`
	Errors     []string                    `json:"errors"`
}
