// Package tabular turns uploaded spreadsheets into header-keyed rows.
//
// Parsing is delegated to encoding/csv and excelize; this package only decides
// which reader applies and normalizes the result: the first row is the header,
// blank rows are dropped, and short rows are padded with empty strings.
package tabular

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyFile is returned when the input has no usable header row.
	ErrEmptyFile = errors.New("empty file: no header row found")

	// ErrMalformed is returned when the input claims a format but cannot be read as it.
	ErrMalformed = errors.New("malformed data file")

	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported data format")
)

// Row maps a column header to the cell value of one data row.
type Row map[string]string

// Table is a parsed data file.
type Table struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Sample returns the first data row, used for the editor preview. It is nil
// when the table is nil or has no rows.
func (t *Table) Sample() Row {
	if t.Len() == 0 {
		return nil
	}
	return t.Rows[0]
}

// Preview returns up to n leading rows.
func (t *Table) Preview(n int) []Row {
	if t.Len() == 0 || n <= 0 {
		return nil
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	return t.Rows[:n]
}

// FindColumn returns the header matching name exactly, falling back to a
// case-insensitive match.
func (t *Table) FindColumn(name string) (string, bool) {
	if t == nil || name == "" {
		return "", false
	}
	for _, c := range t.Columns {
		if c == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// FromRecords builds a Table from raw records. records[0] is the header; its
// cells are trimmed and blank header cells are skipped. When a header name
// repeats, the rightmost cell wins. A record whose cells are all empty
// strings is dropped.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	header := make([]string, len(records[0]))
	var columns []string
	seen := make(map[string]bool)
	for i, cell := range records[0] {
		name := strings.TrimSpace(cell)
		header[i] = name
		if name != "" && !seen[name] {
			seen[name] = true
			columns = append(columns, name)
		}
	}
	if len(columns) == 0 {
		return nil, ErrEmptyFile
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make(Row, len(columns))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(rec) {
				row[name] = rec[i]
			} else if _, ok := row[name]; !ok {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if cell != "" {
			return false
		}
	}
	return true
}
