package core

import (
	"errors"
	"time"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/JonMunkholm/certgen/internal/tabular"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrTooManySessions  = errors.New("too many open sessions")
	ErrNoData           = errors.New("no data file loaded")
	ErrUnknownRole      = errors.New("unknown image role")
	ErrRunInProgress    = errors.New("generation run in progress for this session")
	ErrRunNotFound      = errors.New("generation run not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrFileTooLarge     = errors.New("file too large")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrInvalidCanvas    = errors.New("invalid canvas size")
)

// DefaultPreviewRows is the data preview size shown after upload.
const DefaultPreviewRows = 5

// SessionInfo is returned when a session is created.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TemplateView describes the template surface.
type TemplateView struct {
	Status    surface.Status `json:"status"`
	PageCount int            `json:"page_count,omitempty"`
	Page      int            `json:"page"`
	Size      int            `json:"size,omitempty"`
	Error     string         `json:"error,omitempty"`
	// LastError is set when an upload failed but an earlier template is
	// still loaded and in use.
	LastError string `json:"last_error,omitempty"`
}

// DataSummary describes the loaded data file.
type DataSummary struct {
	FileName   string   `json:"file_name"`
	Columns    []string `json:"columns"`
	RowCount   int      `json:"row_count"`
	NameColumn string   `json:"name_column,omitempty"`
}

// DataPreview is the first rows of the data file.
type DataPreview struct {
	Columns []string      `json:"columns"`
	Rows    []tabular.Row `json:"rows"`
	Total   int           `json:"total"`
}

// Snapshot is the full editor state of a session.
type Snapshot struct {
	ID             string                              `json:"session_id"`
	Elements       []canvas.Element                    `json:"elements"`
	Selected       string                              `json:"selected,omitempty"`
	SelectionLabel string                              `json:"selection_label,omitempty"`
	Dragging       bool                                `json:"dragging"`
	Canvas         pdfgen.Size                         `json:"canvas"`
	Template       *TemplateView                       `json:"template,omitempty"`
	Data           *DataSummary                        `json:"data,omitempty"`
	Images         map[canvas.Kind]*surface.ImageAsset `json:"images"`
	ActiveRun      string                              `json:"active_run,omitempty"`
}

// RenderView is everything the client needs to draw the editor canvas.
type RenderView struct {
	Canvas         pdfgen.Size      `json:"canvas"`
	Viewport       *pdfgen.Viewport `json:"viewport,omitempty"`
	Visuals        []canvas.Visual  `json:"visuals"`
	Selected       string           `json:"selected,omitempty"`
	SelectionLabel string           `json:"selection_label,omitempty"`
	Template       *TemplateView    `json:"template,omitempty"`
}

// DocumentInfo lists one stored certificate.
type DocumentInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Size  int    `json:"size"`
}

// RunResult is the outcome of a generation run.
type RunResult struct {
	RunID      string              `json:"run_id"`
	SessionID  string              `json:"session_id"`
	Progress   generate.Progress   `json:"progress"`
	Percent    int                 `json:"percent"`
	Documents  []DocumentInfo      `json:"documents"`
	Errors     []generate.RowError `json:"errors,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}
