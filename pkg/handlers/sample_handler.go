package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// SampleHandler ingests and lists aggregated source samples. The ingestion
// collaborator pushes value histograms here; the engine never pulls.
type SampleHandler struct {
	samples repositories.SampleRepository
	logger  *zap.Logger
}

// NewSampleHandler creates a SampleHandler.
func NewSampleHandler(samples repositories.SampleRepository, logger *zap.Logger) *SampleHandler {
	return &SampleHandler{samples: samples, logger: logger}
}

// RegisterRoutes registers sample ingestion endpoints.
func (h *SampleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /source/connections/{id}/samples", h.handleList)
	mux.HandleFunc("POST /source/connections/{id}/samples", h.handleIngest)
	mux.HandleFunc("DELETE /source/connections/{id}/samples", h.handleDelete)
}

type sampleIngestRequest struct {
	SourceTable string `json:"source_table"`
	SourceField string `json:"source_field"`
	Values      []struct {
		RawValue        string `json:"raw_value"`
		OccurrenceCount int    `json:"occurrence_count"`
	} `json:"values"`
}

func (h *SampleHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req sampleIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	req.SourceTable = strings.TrimSpace(req.SourceTable)
	req.SourceField = strings.TrimSpace(req.SourceField)
	if req.SourceTable == "" || req.SourceField == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "source_table and source_field are required")
		return
	}

	batch := make([]repositories.SampleIngest, 0, len(req.Values))
	for _, v := range req.Values {
		raw := strings.TrimSpace(v.RawValue)
		if raw == "" {
			continue
		}
		count := v.OccurrenceCount
		if count < 1 {
			count = 1
		}
		batch = append(batch, repositories.SampleIngest{RawValue: raw, Count: count})
	}
	if len(batch) == 0 {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "values must contain at least one non-empty raw_value")
		return
	}

	if err := h.samples.UpsertBatch(r.Context(), id, req.SourceTable, req.SourceField, batch); err != nil {
		h.logger.Error("Failed to ingest samples",
			zap.String("connection_id", id.String()),
			zap.String("source_table", req.SourceTable),
			zap.String("source_field", req.SourceField),
			zap.Error(err))
		ServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{"ingested": len(batch)})
}

func (h *SampleHandler) handleList(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	samples, err := h.samples.ListByField(r.Context(), id, r.URL.Query().Get("table"), r.URL.Query().Get("field"))
	if err != nil {
		ServiceError(w, err)
		return
	}
	if samples == nil {
		samples = []*models.SourceSample{}
	}
	WriteJSON(w, http.StatusOK, samples)
}

func (h *SampleHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	table := r.URL.Query().Get("table")
	field := r.URL.Query().Get("field")
	if table == "" || field == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "table and field query parameters are required")
		return
	}

	if err := h.samples.DeleteByField(r.Context(), id, table, field); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
