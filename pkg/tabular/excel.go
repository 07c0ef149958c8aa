package tabular

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Workbook wraps an uploaded .xlsx so callers can list sheets before picking
// one to parse.
type Workbook struct {
	file *excelize.File
}

// OpenWorkbook parses xlsx bytes into a Workbook. Callers must Close it.
func OpenWorkbook(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &Workbook{file: f}, nil
}

// Close releases the underlying workbook resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Sheets returns the sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// Sheet parses the named sheet into a Table. An empty name selects the first
// sheet. The first non-blank row is the header.
func (w *Workbook) Sheet(name string) (*Table, error) {
	sheets := w.Sheets()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	if name == "" {
		name = sheets[0]
	}

	found := false
	for _, s := range sheets {
		if s == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("sheet %q not found", name)
	}

	raw, err := w.file.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	// Skip leading blank rows before the header.
	start := 0
	for start < len(raw) && isBlank(raw[start]) {
		start++
	}
	if start == len(raw) {
		return nil, fmt.Errorf("sheet %q is empty", name)
	}

	header := raw[start]
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for _, record := range raw[start+1:] {
		row := normalizeRow(record, len(columns))
		if row != nil {
			rows = append(rows, row)
		}
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// IsExcelFilename reports whether the upload should be parsed as a workbook.
func IsExcelFilename(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xlsm")
}
