package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FieldType enumerates the data types a dimension attribute can hold.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
)

// Valid reports whether ft is a supported attribute data type.
func (ft FieldType) Valid() bool {
	switch ft {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean:
		return true
	}
	return false
}

// ExtraField describes one entry of a dimension's attribute schema.
type ExtraField struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	DataType    FieldType `json:"data_type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Dimension is a named category of canonical values with an optional custom
// attribute schema. The code is unique and immutable; canonical values and
// field mappings reference it.
type Dimension struct {
	ID          uuid.UUID    `json:"id"`
	Code        string       `json:"code"`
	Label       string       `json:"label"`
	Description string       `json:"description,omitempty"`
	ExtraFields []ExtraField `json:"extra_fields"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// FieldByKey returns the schema entry for key, or nil when the schema does
// not define it.
func (d *Dimension) FieldByKey(key string) *ExtraField {
	for i := range d.ExtraFields {
		if d.ExtraFields[i].Key == key {
			return &d.ExtraFields[i]
		}
	}
	return nil
}

// Validate checks the structural invariants of a dimension record.
func (d *Dimension) Validate() error {
	if d.Code == "" {
		return fmt.Errorf("dimension code is required")
	}
	if d.Label == "" {
		return fmt.Errorf("dimension label is required")
	}
	seen := make(map[string]struct{}, len(d.ExtraFields))
	for _, field := range d.ExtraFields {
		if field.Key == "" {
			return fmt.Errorf("dimension field keys cannot be empty")
		}
		if !field.DataType.Valid() {
			return fmt.Errorf("unsupported data type %q for field %q", field.DataType, field.Key)
		}
		if _, dup := seen[field.Key]; dup {
			return fmt.Errorf("duplicate dimension field key %q", field.Key)
		}
		seen[field.Key] = struct{}{}
	}
	return nil
}
