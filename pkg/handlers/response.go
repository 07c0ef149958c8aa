package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps a service error onto the HTTP error contract.
func ServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		return ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, apperrors.ErrUnknownDimension):
		return ErrorResponse(w, http.StatusNotFound, "unknown_dimension", err.Error())
	case errors.Is(err, apperrors.ErrDuplicateMapping):
		return ErrorResponse(w, http.StatusConflict, "duplicate_mapping", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		return ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperrors.ErrAmbiguousColumnMapping):
		return ErrorResponse(w, http.StatusBadRequest, "ambiguous_column_mapping", err.Error())
	case errors.Is(err, apperrors.ErrDuplicateKey):
		return ErrorResponse(w, http.StatusBadRequest, "duplicate_key", err.Error())
	case errors.Is(err, apperrors.ErrAttributeSchemaConflict):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "attribute_schema_conflict", err.Error())
	case errors.Is(err, apperrors.ErrMatcherBackendUnavailable):
		return ErrorResponse(w, http.StatusBadGateway, "matcher_backend_unavailable", err.Error())
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
