package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseConnectionID extracts and validates the connection ID from the request
// path. Returns the parsed UUID and true on success, or uuid.Nil and false
// after writing an error response.
// Expects path parameter: id
func ParseConnectionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_connection_id", "Invalid connection ID format", logger)
}

// ParseValueID extracts and validates a canonical value ID from the request
// path.
// Expects path parameter: id
func ParseValueID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "id", "invalid_value_id", "Invalid canonical value ID format", logger)
}

// ParseMappingID extracts and validates a mapping ID (value mapping or field
// mapping) from the request path.
// Expects path parameter: mappingId
func ParseMappingID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "mappingId", "invalid_mapping_id", "Invalid mapping ID format", logger)
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, errorCode, errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return id, true
}
