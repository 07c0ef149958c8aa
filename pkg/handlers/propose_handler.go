package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// ProposeHandler serves match proposals for raw source values.
type ProposeHandler struct {
	matcher services.MatcherService
	logger  *zap.Logger
}

// NewProposeHandler creates a ProposeHandler.
func NewProposeHandler(matcher services.MatcherService, logger *zap.Logger) *ProposeHandler {
	return &ProposeHandler{matcher: matcher, logger: logger}
}

// RegisterRoutes registers matcher endpoints.
func (h *ProposeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /reference/propose", h.handlePropose)
}

type proposeRequest struct {
	RawText   string `json:"raw_text"`
	Dimension string `json:"dimension,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

type proposeResponse struct {
	RawText   string                  `json:"raw_text"`
	Dimension string                  `json:"dimension"`
	Matches   []models.MatchCandidate `json:"matches"`
}

func (h *ProposeHandler) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	req.RawText = strings.TrimSpace(req.RawText)
	if req.RawText == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "raw_text is required")
		return
	}

	session, err := h.matcher.Session(r.Context(), req.Dimension)
	if err != nil {
		h.logger.Error("Failed to create match session",
			zap.String("dimension", req.Dimension),
			zap.Error(err))
		ServiceError(w, err)
		return
	}

	matches, err := session.Propose(r.Context(), req.RawText, req.TopK)
	if err != nil {
		h.logger.Error("Match proposal failed",
			zap.String("raw_text", req.RawText),
			zap.Error(err))
		ServiceError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, proposeResponse{
		RawText:   req.RawText,
		Dimension: session.Dimension(),
		Matches:   matches,
	}); err != nil {
		h.logger.Error("Failed to write propose response", zap.Error(err))
	}
}
