package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
)

func importMux(svc *mockBulkImportService) *http.ServeMux {
	mux := http.NewServeMux()
	NewImportHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestImportHandler_PreviewInlineText(t *testing.T) {
	svc := &mockBulkImportService{
		preview: &models.BulkImportPreview{RowCount: 2},
	}
	mux := importMux(svc)

	body, contentType := multipartBody(t, map[string]string{
		"inline_text": "Status,Code\nMarried,M\nSingle,S\n",
		"dimension":   "marital_status",
	})
	req := httptest.NewRequest(http.MethodPost, "/reference/canonical/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastTable)
	assert.Equal(t, []string{"Status", "Code"}, svc.lastTable.columns)
	assert.Equal(t, 2, svc.lastTable.rows)
}

func TestImportHandler_PreviewWithoutPayload(t *testing.T) {
	mux := importMux(&mockBulkImportService{})

	body, contentType := multipartBody(t, map[string]string{"dimension": "x"})
	req := httptest.NewRequest(http.MethodPost, "/reference/canonical/import/preview", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandler_ImportRequiresMapping(t *testing.T) {
	mux := importMux(&mockBulkImportService{})

	body, contentType := multipartBody(t, map[string]string{
		"inline_text": "Status\nMarried\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/reference/canonical/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandler_ImportPassesMappingAndDryRun(t *testing.T) {
	svc := &mockBulkImportService{
		result: &models.BulkImportResult{DryRun: true},
	}
	mux := importMux(svc)

	mapping := `{"columns": [{"column": "Status", "role": "label"}], "default_dimension": "marital_status"}`
	body, contentType := multipartBody(t, map[string]string{
		"inline_text": "Status\nMarried\n",
		"mapping":     mapping,
		"dry_run":     "true",
	})
	req := httptest.NewRequest(http.MethodPost, "/reference/canonical/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastTable)
	assert.True(t, svc.lastTable.dryRun)
	require.Len(t, svc.lastTable.mapping.Columns, 1)
	assert.Equal(t, models.RoleLabel, svc.lastTable.mapping.Columns[0].Role)
	assert.Equal(t, "marital_status", svc.lastTable.mapping.DefaultDimension)
}

func TestImportHandler_RejectsInvalidRoleInMapping(t *testing.T) {
	mux := importMux(&mockBulkImportService{})

	body, contentType := multipartBody(t, map[string]string{
		"inline_text": "Status\nMarried\n",
		"mapping":     `{"columns": [{"column": "Status", "role": "banana"}]}`,
	})
	req := httptest.NewRequest(http.MethodPost, "/reference/canonical/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandler_UnresolvedDuplicatesReturn409WithResult(t *testing.T) {
	svc := &mockBulkImportService{
		result: &models.BulkImportResult{
			Duplicates: []models.BulkImportDuplicateRecord{
				{RowNumber: 3, Dimension: "marital_status", CanonicalLabel: "Married"},
			},
		},
		runErr: fmt.Errorf("%w: 1 duplicate labels need a strategy", apperrors.ErrConflict),
	}
	mux := importMux(svc)

	body, contentType := multipartBody(t, map[string]string{
		"inline_text": "Status\nMarried\n",
		"mapping":     `{"columns": [{"column": "Status", "role": "label"}], "default_dimension": "marital_status"}`,
	})
	req := httptest.NewRequest(http.MethodPost, "/reference/canonical/import", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp models.BulkImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Duplicates, 1)
	assert.Equal(t, "Married", resp.Duplicates[0].CanonicalLabel)
}
