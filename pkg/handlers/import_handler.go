package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/apperrors"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/services"
	"github.com/refdatahub/refdata-engine/pkg/tabular"
)

// maxUploadBytes caps bulk import uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// ImportHandler serves bulk canonical value imports: a dry-run preview with
// inferred column roles, and the commit with a caller-confirmed mapping.
type ImportHandler struct {
	imports services.BulkImportService
	logger  *zap.Logger
}

// NewImportHandler creates an ImportHandler.
func NewImportHandler(imports services.BulkImportService, logger *zap.Logger) *ImportHandler {
	return &ImportHandler{imports: imports, logger: logger}
}

// RegisterRoutes registers bulk import endpoints.
func (h *ImportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /reference/canonical/import/preview", h.handlePreview)
	mux.HandleFunc("POST /reference/canonical/import", h.handleImport)
}

// readUpload pulls the tabular payload out of a multipart form. Either a
// "file" part or an "inline_text" field is accepted. Excel files expose their
// sheet list; the "sheet" field picks one, defaulting to the first. The
// returned name is the uploaded file's base name without extension, used as a
// dimension hint during preview.
func readUpload(r *http.Request) (table *tabular.Table, sheets []string, sheet, name string, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, "", "", fmt.Errorf("%w: parse multipart form: %v", apperrors.ErrInvalidInput, err)
	}

	sheet = strings.TrimSpace(r.FormValue("sheet"))

	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		inline := r.FormValue("inline_text")
		if strings.TrimSpace(inline) == "" {
			return nil, nil, "", "", fmt.Errorf("%w: either file or inline_text is required", apperrors.ErrInvalidInput)
		}
		table, err := tabular.ParseDelimited([]byte(inline))
		if err != nil {
			return nil, nil, "", "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		return table, nil, "", "", nil
	}
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("%w: read upload: %v", apperrors.ErrInvalidInput, err)
	}
	defer file.Close()

	name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, nil, "", "", fmt.Errorf("%w: upload exceeds %d bytes", apperrors.ErrInvalidInput, maxUploadBytes)
	}

	if tabular.IsExcelFilename(header.Filename) {
		wb, err := tabular.OpenWorkbook(data)
		if err != nil {
			return nil, nil, "", "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		defer wb.Close()

		sheets = wb.Sheets()
		table, err := wb.Sheet(sheet)
		if err != nil {
			return nil, nil, "", "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		if sheet == "" && len(sheets) > 0 {
			sheet = sheets[0]
		}
		return table, sheets, sheet, name, nil
	}

	table, err = tabular.ParseDelimited(data)
	if err != nil {
		return nil, nil, "", "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return table, nil, "", name, nil
}

func (h *ImportHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	table, sheets, sheet, name, err := readUpload(r)
	if err != nil {
		ServiceError(w, err)
		return
	}

	dimension := strings.TrimSpace(r.FormValue("dimension"))

	preview, err := h.imports.Preview(r.Context(), table, sheets, sheet, name, dimension)
	if err != nil {
		h.logger.Error("Import preview failed", zap.Error(err))
		ServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, preview)
}

func (h *ImportHandler) handleImport(w http.ResponseWriter, r *http.Request) {
	table, _, _, _, err := readUpload(r)
	if err != nil {
		ServiceError(w, err)
		return
	}

	mappingJSON := r.FormValue("mapping")
	if strings.TrimSpace(mappingJSON) == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "mapping is required")
		return
	}
	var mapping models.ImportMapping
	if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid mapping JSON: "+err.Error())
		return
	}

	dryRun := r.FormValue("dry_run") == "true"
	strategy := models.DuplicateStrategy(r.FormValue("duplicate_strategy"))

	result, err := h.imports.Run(r.Context(), table, mapping, dryRun, strategy)
	if err != nil {
		// Unresolved duplicates return the full result so the operator can
		// review the collisions and retry with a strategy.
		if errors.Is(err, apperrors.ErrConflict) && result != nil {
			WriteJSON(w, http.StatusConflict, result)
			return
		}
		h.logger.Error("Bulk import failed", zap.Bool("dry_run", dryRun), zap.Error(err))
		ServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !dryRun && len(result.Created) > 0 {
		status = http.StatusCreated
	}
	WriteJSON(w, status, result)
}
