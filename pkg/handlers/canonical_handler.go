package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// CanonicalHandler serves canonical value CRUD.
type CanonicalHandler struct {
	canonical services.CanonicalService
	logger    *zap.Logger
}

// NewCanonicalHandler creates a CanonicalHandler.
func NewCanonicalHandler(canonical services.CanonicalService, logger *zap.Logger) *CanonicalHandler {
	return &CanonicalHandler{canonical: canonical, logger: logger}
}

// RegisterRoutes registers canonical value endpoints.
func (h *CanonicalHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /reference/canonical", h.handleList)
	mux.HandleFunc("POST /reference/canonical", h.handleCreate)
	mux.HandleFunc("GET /reference/canonical/{id}", h.handleGet)
	mux.HandleFunc("PUT /reference/canonical/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /reference/canonical/{id}", h.handleDelete)
}

func (h *CanonicalHandler) handleList(w http.ResponseWriter, r *http.Request) {
	values, err := h.canonical.List(r.Context(), r.URL.Query().Get("dimension"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	if values == nil {
		values = []*models.CanonicalValue{}
	}
	WriteJSON(w, http.StatusOK, values)
}

func (h *CanonicalHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var value models.CanonicalValue
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.canonical.Create(r.Context(), &value); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, value)
}

func (h *CanonicalHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseValueID(w, r, h.logger)
	if !ok {
		return
	}

	value, err := h.canonical.Get(r.Context(), id)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, value)
}

func (h *CanonicalHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseValueID(w, r, h.logger)
	if !ok {
		return
	}

	var value models.CanonicalValue
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	value.ID = id

	if err := h.canonical.Update(r.Context(), &value); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, value)
}

func (h *CanonicalHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseValueID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.canonical.Delete(r.Context(), id); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
