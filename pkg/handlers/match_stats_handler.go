package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// MatchStatsHandler serves match coverage reporting.
type MatchStatsHandler struct {
	stats  services.MatchStatsService
	logger *zap.Logger
}

// NewMatchStatsHandler creates a MatchStatsHandler.
func NewMatchStatsHandler(stats services.MatchStatsService, logger *zap.Logger) *MatchStatsHandler {
	return &MatchStatsHandler{stats: stats, logger: logger}
}

// RegisterRoutes registers match statistics endpoints.
func (h *MatchStatsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /source/connections/{id}/match-stats", h.handleConnectionStats)
	mux.HandleFunc("GET /source/connections/{id}/unmatched", h.handleUnmatched)
	mux.HandleFunc("GET /source/field-mappings/{mappingId}/match-stats", h.handleFieldStats)
}

func (h *MatchStatsHandler) handleConnectionStats(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.stats.ConnectionStats(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to compute match stats", zap.String("connection_id", id.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	if stats == nil {
		stats = []*models.FieldMatchStats{}
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *MatchStatsHandler) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	unmatched, err := h.stats.UnmatchedValues(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to compute unmatched values", zap.String("connection_id", id.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	if unmatched == nil {
		unmatched = []*models.UnmatchedValueRecord{}
	}
	WriteJSON(w, http.StatusOK, unmatched)
}

func (h *MatchStatsHandler) handleFieldStats(w http.ResponseWriter, r *http.Request) {
	mappingID, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.stats.FieldStats(r.Context(), mappingID)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
