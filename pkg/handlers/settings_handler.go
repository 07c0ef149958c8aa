package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// SettingsHandler serves the matcher configuration surface. The LLM API key
// is write-only; responses only report whether one is stored.
type SettingsHandler struct {
	settings services.SettingsService
	logger   *zap.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings services.SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: logger}
}

// RegisterRoutes registers match settings endpoints.
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /config/match-settings", h.handleGet)
	mux.HandleFunc("PUT /config/match-settings", h.handleUpdate)
}

func (h *SettingsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("Failed to load match settings", zap.Error(err))
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, settings.View())
}

func (h *SettingsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var update models.MatchSettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	settings, err := h.settings.Update(r.Context(), update)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, settings.View())
}
