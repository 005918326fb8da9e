package tabular

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/xuri/excelize/v2"
)

func TestCleanReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"plain ascii", []byte("a,b\n1,2\n"), "a,b\n1,2\n"},
		{"bom stripped", append([]byte{0xEF, 0xBB, 0xBF}, "Name\nAda\n"...), "Name\nAda\n"},
		{"bom only", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"invalid byte replaced", []byte("Jos\xe9,1\n"), "Jos?,1\n"},
		{"valid multibyte kept", []byte("Zoë,Ünal\n"), "Zoë,Ünal\n"},
		{"short input", []byte("a"), "a"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(NewCleanReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanReader_SplitRunes(t *testing.T) {
	input := []byte("Ünal,Zoë,日本\n")
	got, err := io.ReadAll(NewCleanReader(iotest.OneByteReader(bytes.NewReader(input))))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, input) {
		t.Errorf("got %q, want %q", got, input)
	}
}

func TestParse_CSV(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, "Name,Course\nAda,Math\n,\nGrace\n"...)

	table, err := Parse("people.csv", data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[0] != "Name" {
		t.Errorf("Columns = %v, want [Name Course]", table.Columns)
	}
	if table.Len() != 2 {
		t.Fatalf("Len = %d, want 2", table.Len())
	}
	if got := table.Rows[1]["Course"]; got != "" {
		t.Errorf("ragged row Course = %q, want empty", got)
	}
}

func TestParse_CSVWithoutExtension(t *testing.T) {
	table, err := Parse("upload", []byte("Name\nAda\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestParse_XLSX(t *testing.T) {
	wb := excelize.NewFile()
	wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"Name", "Course"})
	wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"Ada", "Math"})
	wb.SetSheetRow("Sheet1", "A4", &[]interface{}{"Grace"})
	if _, err := wb.NewSheet("Other"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	wb.SetSheetRow("Other", "A1", &[]interface{}{"Ignored"})

	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	table, err := Parse("people.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[1] != "Course" {
		t.Errorf("Columns = %v, want [Name Course]", table.Columns)
	}
	if table.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (blank row 3 dropped)", table.Len())
	}
	if got := table.Rows[1]["Name"]; got != "Grace" {
		t.Errorf("Rows[1][Name] = %q, want Grace", got)
	}
	if got := table.Rows[1]["Course"]; got != "" {
		t.Errorf("Rows[1][Course] = %q, want empty", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		wantErr error
	}{
		{"empty", "a.csv", nil, ErrEmptyFile},
		{"whitespace only", "a.csv", []byte(" \n\n"), ErrEmptyFile},
		{"legacy xls", "a.xls", []byte{0xD0, 0xCF, 0x11, 0xE0}, ErrUnsupportedFormat},
		{"pdf", "a.csv", []byte("%PDF-1.4\n%%EOF"), ErrUnsupportedFormat},
		{"binary", "blob.bin", []byte{0x01, 0x00, 0x02}, ErrUnsupportedFormat},
		{"fake xlsx", "a.xlsx", []byte("Name\nAda\n"), ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
