package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/certgen/internal/artifacts"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/JonMunkholm/certgen/internal/tabular"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"template not pdf", fmt.Errorf("load template: %w", surface.ErrNotPDF), "TPL001"},
		{"no template", surface.ErrNoTemplate, "TPL002"},
		{"template import", fmt.Errorf("prepare template: %w", pdfgen.ErrTemplateImport), "TPL003"},
		{"superseded", surface.ErrSuperseded, "TPL004"},
		{"empty data", fmt.Errorf("parse people.csv: %w", tabular.ErrEmptyFile), "DATA001"},
		{"unsupported data", tabular.ErrUnsupportedFormat, "DATA002"},
		{"malformed data", tabular.ErrMalformed, "DATA003"},
		{"no data", ErrNoData, "DATA004"},
		{"unsupported image", surface.ErrUnsupportedImage, "IMG001"},
		{"unknown role", ErrUnknownRole, "IMG002"},
		{"no fields", generate.ErrNoElements, "GEN001"},
		{"busy", generate.ErrTooManyRuns, "GEN002"},
		{"already running", ErrRunInProgress, "GEN003"},
		{"run missing", ErrRunNotFound, "GEN004"},
		{"artifact expired", artifacts.ErrNotFound, "GEN005"},
		{"document missing", ErrDocumentNotFound, "GEN005"},
		{"not finished", generate.ErrNotFinished, "GEN006"},
		{"session missing", ErrSessionNotFound, "SES001"},
		{"bad token", ErrInvalidToken, "SES002"},
		{"session cap", ErrTooManySessions, "SES003"},
		{"cancelled", context.Canceled, "SES005"},
		{"deadline", context.DeadlineExceeded, "SES006"},
		{"file too large", ErrFileTooLarge, "FILE001"},
		{"case insensitive", errors.New("RATE LIMIT exceeded"), "RATE001"},
		{"unknown error", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(surface.ErrNotPDF)
	want := "The template must be a PDF document (Code: TPL001). Export your certificate design as PDF and upload it again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"known error", tabular.ErrMalformed, true},
		{"unknown error", errors.New("random internal error xyz"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	tech := fmt.Errorf("parse roster.xlsx: %w", tabular.ErrMalformed)
	ue := NewUserError(tech)
	if ue.Error() != "The data file could not be read" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if !errors.Is(ue, tabular.ErrMalformed) {
		t.Error("UserError should unwrap to the technical error")
	}
}
