package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
)

// ConnectionHandler serves the source connection registry. Connections are
// metadata only; the engine never dials the source system itself.
type ConnectionHandler struct {
	connections repositories.ConnectionRepository
	logger      *zap.Logger
}

// NewConnectionHandler creates a ConnectionHandler.
func NewConnectionHandler(connections repositories.ConnectionRepository, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connections: connections, logger: logger}
}

// RegisterRoutes registers source connection endpoints.
func (h *ConnectionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /source/connections", h.handleList)
	mux.HandleFunc("POST /source/connections", h.handleCreate)
	mux.HandleFunc("GET /source/connections/{id}", h.handleGet)
	mux.HandleFunc("PUT /source/connections/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /source/connections/{id}", h.handleDelete)
}

type connectionRequest struct {
	Name     string `json:"name"`
	DBType   string `json:"db_type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	// Password is write-only. An empty value on update keeps the stored
	// credential.
	Password string `json:"password"`
	Options  string `json:"options"`
}

// connectionResponse exposes password_set instead of the credential.
type connectionResponse struct {
	*models.SourceConnection
	PasswordSet bool `json:"password_set"`
}

func newConnectionResponse(conn *models.SourceConnection) connectionResponse {
	return connectionResponse{SourceConnection: conn, PasswordSet: conn.PasswordSet()}
}

func (h *ConnectionHandler) handleList(w http.ResponseWriter, r *http.Request) {
	conns, err := h.connections.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list connections", zap.Error(err))
		ServiceError(w, err)
		return
	}

	out := make([]connectionResponse, 0, len(conns))
	for _, conn := range conns {
		out = append(out, newConnectionResponse(conn))
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h *ConnectionHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}

	conn := &models.SourceConnection{
		Name:     req.Name,
		DBType:   req.DBType,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		Options:  req.Options,
	}
	if err := h.connections.Create(r.Context(), conn); err != nil {
		h.logger.Error("Failed to create connection", zap.String("name", req.Name), zap.Error(err))
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newConnectionResponse(conn))
}

func (h *ConnectionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	conn, err := h.connections.GetByID(r.Context(), id)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newConnectionResponse(conn))
}

func (h *ConnectionHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	conn := &models.SourceConnection{
		ID:       id,
		Name:     strings.TrimSpace(req.Name),
		DBType:   req.DBType,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		Options:  req.Options,
	}
	if err := h.connections.Update(r.Context(), conn); err != nil {
		ServiceError(w, err)
		return
	}

	// Re-read so the response reflects a kept credential.
	updated, err := h.connections.GetByID(r.Context(), id)
	if err != nil {
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newConnectionResponse(updated))
}

func (h *ConnectionHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseConnectionID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.connections.Delete(r.Context(), id); err != nil {
		ServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
