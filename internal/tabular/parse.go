package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tsawler/tabula/format"
	"github.com/xuri/excelize/v2"
)

// Format is the detected kind of a data file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// sniffLen is how much of a file is inspected when deciding if it is text.
const sniffLen = 512

// DetectFormat decides how data should be read. Workbooks are recognized by
// content; CSV by extension or, failing that, by looking like text. Legacy
// binary .xls workbooks are rejected.
func DetectFormat(name string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".xls" {
		return "", fmt.Errorf("%w: legacy .xls workbooks are not supported, save as .xlsx or .csv", ErrUnsupportedFormat)
	}

	detected, err := format.DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch detected {
	case format.XLSX:
		return FormatXLSX, nil
	case format.Unknown:
		if ext == ".xlsx" {
			return "", fmt.Errorf("%w: %s is not a valid xlsx workbook", ErrMalformed, name)
		}
		if ext == ".csv" || looksLikeText(data) {
			return FormatCSV, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	default:
		return "", fmt.Errorf("%w: got %s", ErrUnsupportedFormat, detected)
	}
}

func looksLikeText(data []byte) bool {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return bytes.IndexByte(data, 0) < 0
}

// Parse reads a CSV or XLSX file into a Table. name is only used for format
// hints and error messages.
func Parse(name string, data []byte) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("parse %s: %w", name, ErrEmptyFile)
	}

	f, err := DetectFormat(name, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	var records [][]string
	switch f {
	case FormatXLSX:
		records, err = readXLSX(data)
	default:
		records, err = readCSV(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	t, err := FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return t, nil
}

// readXLSX returns the rows of the first worksheet.
func readXLSX(data []byte) ([][]string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: open workbook: %v", ErrMalformed, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformed, sheets[0], err)
	}
	return rows, nil
}

// readCSV reads every record, allowing ragged rows and loose quoting.
func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(NewCleanReader(bytes.NewReader(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", ErrMalformed, err)
	}
	return records, nil
}
