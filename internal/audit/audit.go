// Package audit records what happened to editor sessions and generation
// runs: which templates and data files were loaded, and how each run ended.
//
// Entries always go to the structured log. When DATABASE_URL is set they
// are also written to PostgreSQL so run history survives restarts.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of event recorded.
type Action string

const (
	ActionSessionCreated Action = "session_created"
	ActionSessionEnded   Action = "session_ended"
	ActionTemplateLoaded Action = "template_loaded"
	ActionDataLoaded     Action = "data_loaded"
	ActionRunCompleted   Action = "run_completed"
	ActionRunFailed      Action = "run_failed"
)

// Severity grades an action for filtering.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func severityOf(a Action) Severity {
	switch a {
	case ActionRunFailed:
		return SeverityHigh
	case ActionRunCompleted, ActionDataLoaded, ActionTemplateLoaded:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Entry is a single audit record.
type Entry struct {
	ID        string    `json:"id"`
	Action    Action    `json:"action"`
	Severity  Severity  `json:"severity"`
	SessionID string    `json:"session_id"`
	RunID     string    `json:"run_id,omitempty"`
	Rows      int       `json:"rows,omitempty"`
	Documents int       `json:"documents,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// fill assigns the id, severity and timestamp if unset.
func (e *Entry) fill() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Severity == "" {
		e.Severity = severityOf(e.Action)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// LogRecorder writes entries to a slog logger.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) Record(ctx context.Context, e Entry) error {
	e.fill()
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if e.Severity == SeverityHigh {
		level = slog.LevelWarn
	}
	logger.LogAttrs(ctx, level, "audit",
		slog.String("audit_id", e.ID),
		slog.String("action", string(e.Action)),
		slog.String("session_id", e.SessionID),
		slog.String("run_id", e.RunID),
		slog.Int("rows", e.Rows),
		slog.Int("documents", e.Documents),
		slog.Int("failed", e.Failed),
		slog.String("detail", e.Detail),
		slog.String("ip", e.IPAddress),
	)
	return nil
}

// Tee records to every recorder and joins their errors.
func Tee(recorders ...Recorder) Recorder {
	return tee(recorders)
}

type tee []Recorder

func (t tee) Record(ctx context.Context, e Entry) error {
	e.fill()
	var errs []error
	for _, r := range t {
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
