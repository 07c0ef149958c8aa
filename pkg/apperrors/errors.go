package apperrors

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidInput              = errors.New("invalid input")
	ErrConflict                  = errors.New("conflict")
	ErrUnknownDimension          = errors.New("unknown dimension")
	ErrMatcherBackendUnavailable = errors.New("matcher backend unavailable")
	ErrDuplicateMapping          = errors.New("value mapping already exists")
	ErrDuplicateKey              = errors.New("duplicate key violation")
	ErrAmbiguousColumnMapping    = errors.New("ambiguous column mapping")
	ErrAttributeSchemaConflict   = errors.New("attribute schema conflict")
)
