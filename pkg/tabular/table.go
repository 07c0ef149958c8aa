// Package tabular parses delimited text and spreadsheet uploads into a
// uniform in-memory table. All cell values are strings; typing happens
// downstream during column inference.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Table is a parsed upload: a header row plus data rows. Rows are padded or
// truncated to the header width so downstream code can index by column.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty reports whether the table has no data rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at (row, col), or "" when out of range.
func (t *Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// SniffDelimiter picks the delimiter for a text upload by counting candidate
// separators in the first line. Tabs win ties because a tab in a header is a
// stronger signal than a comma.
func SniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	tabs := bytes.Count(line, []byte{'\t'})
	commas := bytes.Count(line, []byte{','})
	semis := bytes.Count(line, []byte{';'})

	switch {
	case tabs > 0:
		return '\t'
	case commas > 0:
		return ','
	case semis > 0:
		return ';'
	default:
		return ','
	}
}

// ParseDelimited parses CSV or TSV content, sniffing the delimiter. The first
// row is the header. Blank rows are dropped; ragged rows are normalized to
// the header width.
func ParseDelimited(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = SniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty upload")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows [][]string
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		row := normalizeRow(record, len(columns))
		if row != nil {
			rows = append(rows, row)
		}
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// normalizeRow trims cells and pads or truncates to width. Returns nil for
// rows that are entirely blank.
func normalizeRow(record []string, width int) []string {
	row := make([]string, width)
	blank := true
	for i := 0; i < width; i++ {
		if i < len(record) {
			row[i] = strings.TrimSpace(record[i])
		}
		if row[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil
	}
	return row
}
