package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// DimensionHandler serves the dimension registry.
type DimensionHandler struct {
	dimensions services.DimensionService
	logger     *zap.Logger
}

// NewDimensionHandler creates a DimensionHandler.
func NewDimensionHandler(dimensions services.DimensionService, logger *zap.Logger) *DimensionHandler {
	return &DimensionHandler{dimensions: dimensions, logger: logger}
}

// RegisterRoutes registers dimension registry endpoints.
func (h *DimensionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /reference/dimensions", h.handleList)
	mux.HandleFunc("POST /reference/dimensions", h.handleCreate)
	mux.HandleFunc("GET /reference/dimensions/{code}", h.handleGet)
	mux.HandleFunc("PUT /reference/dimensions/{code}", h.handleUpdate)
	mux.HandleFunc("DELETE /reference/dimensions/{code}", h.handleDelete)
}

func (h *DimensionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	dims, err := h.dimensions.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list dimensions", zap.Error(err))
		ServiceError(w, err)
		return
	}
	if dims == nil {
		dims = []*models.Dimension{}
	}
	WriteJSON(w, http.StatusOK, dims)
}

func (h *DimensionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var dim models.Dimension
	if err := json.NewDecoder(r.Body).Decode(&dim); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	if err := h.dimensions.Create(r.Context(), &dim); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, dim)
}

func (h *DimensionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	dim, err := h.dimensions.Get(r.Context(), r.PathValue("code"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dim)
}

func (h *DimensionHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var dim models.Dimension
	if err := json.NewDecoder(r.Body).Decode(&dim); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	dim.Code = r.PathValue("code")

	if err := h.dimensions.Update(r.Context(), &dim); err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, dim)
}

func (h *DimensionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.dimensions.Delete(r.Context(), r.PathValue("code")); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
