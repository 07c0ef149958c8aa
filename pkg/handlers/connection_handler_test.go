package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/models"
)

func connectionMux(repo *mockConnectionRepo) *http.ServeMux {
	mux := http.NewServeMux()
	NewConnectionHandler(repo, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestConnectionHandler_CreateNeverEchoesPassword(t *testing.T) {
	repo := &mockConnectionRepo{}
	mux := connectionMux(repo)

	body, _ := json.Marshal(map[string]any{
		"name":     "warehouse",
		"db_type":  "postgres",
		"host":     "db.internal",
		"port":     5432,
		"database": "crm",
		"username": "reader",
		"password": "hunter2",
	})
	req := httptest.NewRequest(http.MethodPost, "/source/connections", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["password_set"])
	_, hasPassword := resp["password"]
	assert.False(t, hasPassword)

	// The credential still reached the store.
	require.NotNil(t, repo.connection)
	assert.Equal(t, "hunter2", repo.connection.Password)
}

func TestConnectionHandler_CreateRequiresName(t *testing.T) {
	mux := connectionMux(&mockConnectionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/source/connections",
		bytes.NewReader([]byte(`{"db_type": "postgres"}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectionHandler_ListReportsPasswordSet(t *testing.T) {
	repo := &mockConnectionRepo{
		connections: []*models.SourceConnection{
			{ID: uuid.New(), Name: "with-secret", Password: "pw"},
			{ID: uuid.New(), Name: "without-secret"},
		},
	}
	mux := connectionMux(repo)

	req := httptest.NewRequest(http.MethodGet, "/source/connections", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pw\"")

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, true, resp[0]["password_set"])
	assert.Equal(t, false, resp[1]["password_set"])
}

func TestConnectionHandler_InvalidID(t *testing.T) {
	mux := connectionMux(&mockConnectionRepo{})

	req := httptest.NewRequest(http.MethodGet, "/source/connections/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
