package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// HealthHandler reports process liveness.
type HealthHandler struct {
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{version: version, logger: logger}
}

// RegisterRoutes registers health endpoints.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	}); err != nil {
		h.logger.Error("Failed to write health response", zap.Error(err))
	}
}
