package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// FieldMappingHandler serves field-to-dimension mapping declarations.
type FieldMappingHandler struct {
	fieldMappings repositories.FieldMappingRepository
	dimensions    repositories.DimensionRepository
	logger        *zap.Logger
}

// NewFieldMappingHandler creates a FieldMappingHandler.
func NewFieldMappingHandler(fieldMappings repositories.FieldMappingRepository, dimensions repositories.DimensionRepository, logger *zap.Logger) *FieldMappingHandler {
	return &FieldMappingHandler{fieldMappings: fieldMappings, dimensions: dimensions, logger: logger}
}

// RegisterRoutes registers field mapping endpoints.
func (h *FieldMappingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /source/connections/{id}/field-mappings", h.handleList)
	mux.HandleFunc("POST /source/connections/{id}/field-mappings", h.handleCreate)
	mux.HandleFunc("PUT /source/connections/{id}/field-mappings/{mappingId}", h.handleUpdate)
	mux.HandleFunc("DELETE /source/connections/{id}/field-mappings/{mappingId}", h.handleDelete)
}

type fieldMappingRequest struct {
	SourceTable  string `json:"source_table"`
	SourceField  string `json:"source_field"`
	RefDimension string `json:"ref_dimension"`
	Description  string `json:"description"`
}

func (req *fieldMappingRequest) validate() string {
	req.SourceTable = strings.TrimSpace(req.SourceTable)
	req.SourceField = strings.TrimSpace(req.SourceField)
	req.RefDimension = strings.TrimSpace(req.RefDimension)
	switch {
	case req.SourceTable == "":
		return "source_table is required"
	case req.SourceField == "":
		return "source_field is required"
	case req.RefDimension == "":
		return "ref_dimension is required"
	}
	return ""
}

func (h *FieldMappingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	mappings, err := h.fieldMappings.ListByConnection(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to list field mappings", zap.String("connection_id", id.String()), zap.Error(err))
		ServiceError(w, err)
		return
	}
	if mappings == nil {
		mappings = []*models.SourceFieldMapping{}
	}
	WriteJSON(w, http.StatusOK, mappings)
}

func (h *FieldMappingHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req fieldMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	if _, err := h.dimensions.GetByCode(r.Context(), req.RefDimension); err != nil {
		ServiceError(w, err)
		return
	}

	mapping := &models.SourceFieldMapping{
		ConnectionID: id,
		SourceTable:  req.SourceTable,
		SourceField:  req.SourceField,
		RefDimension: req.RefDimension,
		Description:  req.Description,
	}
	if err := h.fieldMappings.Create(r.Context(), mapping); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, mapping)
}

func (h *FieldMappingHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}
	mappingID, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	existing, err := h.fieldMappings.GetByID(r.Context(), mappingID)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if existing.ConnectionID != connID {
		ErrorResponse(w, http.StatusNotFound, "not_found", "Field mapping not found for connection")
		return
	}

	var req fieldMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if msg := req.validate(); msg != "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}

	if _, err := h.dimensions.GetByCode(r.Context(), req.RefDimension); err != nil {
		ServiceError(w, err)
		return
	}

	existing.SourceTable = req.SourceTable
	existing.SourceField = req.SourceField
	existing.RefDimension = req.RefDimension
	existing.Description = req.Description
	if err := h.fieldMappings.Update(r.Context(), existing); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, existing)
}

func (h *FieldMappingHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	connID, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}
	mappingID, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	existing, err := h.fieldMappings.GetByID(r.Context(), mappingID)
	if err != nil {
		ServiceError(w, err)
		return
	}
	if existing.ConnectionID != connID {
		ErrorResponse(w, http.StatusNotFound, "not_found", "Field mapping not found for connection")
		return
	}

	if err := h.fieldMappings.Delete(r.Context(), mappingID); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
