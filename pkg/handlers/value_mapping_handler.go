package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// ValueMappingHandler serves the value mapping ledger.
type ValueMappingHandler struct {
	valueMappings services.ValueMappingService
	logger        *zap.Logger
}

// NewValueMappingHandler creates a ValueMappingHandler.
func NewValueMappingHandler(valueMappings services.ValueMappingService, logger *zap.Logger) *ValueMappingHandler {
	return &ValueMappingHandler{valueMappings: valueMappings, logger: logger}
}

// RegisterRoutes registers value mapping ledger endpoints.
func (h *ValueMappingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /source/connections/{id}/value-mappings", h.handleList)
	mux.HandleFunc("POST /source/connections/{id}/value-mappings", h.handleRecord)
	mux.HandleFunc("PUT /source/connections/{id}/value-mappings/{mappingId}", h.handleUpdate)
	mux.HandleFunc("DELETE /source/connections/{id}/value-mappings/{mappingId}", h.handleDelete)
}

type valueMappingRequest struct {
	SourceTable    string               `json:"source_table"`
	SourceField    string               `json:"source_field"`
	RawValue       string               `json:"raw_value"`
	CanonicalID    uuid.UUID            `json:"canonical_id"`
	Status         models.MappingStatus `json:"status"`
	Confidence     *float64             `json:"confidence"`
	SuggestedLabel string               `json:"suggested_label"`
	Notes          string               `json:"notes"`
	// CreateOnly refuses to overwrite an existing ledger entry for the same
	// raw value, answering 409 instead of upserting.
	CreateOnly bool `json:"create_only,omitempty"`
}

func (h *ValueMappingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	mappings, err := h.valueMappings.List(r.Context(), id, r.URL.Query().Get("table"), r.URL.Query().Get("field"))
	if err != nil {
		h.logger.Error("Failed to list value mappings", zap.String("connection_id", id.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	if mappings == nil {
		mappings = []*models.ValueMappingExpanded{}
	}
	WriteJSON(w, http.StatusOK, mappings)
}

func (h *ValueMappingHandler) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req valueMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	mapping := &models.ValueMapping{
		ConnectionID:   id,
		SourceTable:    req.SourceTable,
		SourceField:    req.SourceField,
		RawValue:       req.RawValue,
		CanonicalID:    req.CanonicalID,
		Status:         req.Status,
		Confidence:     req.Confidence,
		SuggestedLabel: req.SuggestedLabel,
		Notes:          req.Notes,
	}

	if req.CreateOnly {
		if err := h.valueMappings.Create(r.Context(), mapping); err != nil {
			ServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, mapping)
		return
	}

	created, err := h.valueMappings.Record(r.Context(), mapping)
	if err != nil {
		ServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, mapping)
}

func (h *ValueMappingHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}
	mappingID, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	existing, err := h.valueMappings.Get(r.Context(), mappingID)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if existing.ConnectionID != connID {
		ErrorResponse(w, http.StatusNotFound, "not_found", "Value mapping not found for connection")
		return
	}

	var req valueMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	// The ledger key (connection, table, field, raw value) is immutable; only
	// the target and provenance fields change.
	existing.CanonicalID = req.CanonicalID
	if req.Status != "" {
		existing.Status = req.Status
	}
	existing.Confidence = req.Confidence
	existing.SuggestedLabel = req.SuggestedLabel
	existing.Notes = req.Notes

	if _, err := h.valueMappings.Record(r.Context(), existing); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, existing)
}

func (h *ValueMappingHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}
	mappingID, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	existing, err := h.valueMappings.Get(r.Context(), mappingID)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if existing.ConnectionID != connID {
		ErrorResponse(w, http.StatusNotFound, "not_found", "Value mapping not found for connection")
		return
	}

	if err := h.valueMappings.Delete(r.Context(), mappingID); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
