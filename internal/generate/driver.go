// Package generate runs batch certificate generation: one PDF per data row,
// bound from a snapshot of the placed fields, with progress reporting and a
// ZIP bundle of the results.
//
// A Driver is single use. It moves Idle → Running → Completed or Failed and
// never leaves a terminal phase. Per-row failures are recorded as RowErrors
// and the run continues with the next row; only failures that affect every
// row (no fields, an unreadable template, cancellation) fail the run.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/tabular"
)

var (
	ErrNoElements     = errors.New("no fields placed on the template")
	ErrNoBinder       = errors.New("no document binder configured")
	ErrAlreadyStarted = errors.New("generation run already started")
	ErrNotFinished    = errors.New("generation run has not finished")
)

// Binder produces one document per row. pdfgen.Binder implements it.
type Binder interface {
	Prepare(ctx context.Context) error
	Bind(ctx context.Context, index int, row tabular.Row, elements []canvas.Element) ([]byte, error)
}

// Job is the immutable input to a run. Elements and Rows are copied when the
// run starts, so later edits to the session do not affect it.
type Job struct {
	Elements   []canvas.Element
	Rows       []tabular.Row
	NameColumn string
	Binder     Binder
}

// Document is one generated certificate.
type Document struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Data  []byte `json:"-"`
}

// RowError records a row that produced no document.
type RowError struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of a finished run.
type Result struct {
	Documents  []Document `json:"documents"`
	Errors     []RowError `json:"errors,omitempty"`
	Progress   Progress   `json:"progress"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Driver executes a single generation run.
type Driver struct {
	logger *slog.Logger

	mu     sync.Mutex
	phase  Phase
	result *Result

	progress broadcaster
	done     chan struct{}
}

// NewDriver returns an idle driver. A nil logger uses slog.Default().
func NewDriver(logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		logger: logger,
		phase:  PhaseIdle,
		done:   make(chan struct{}),
	}
	d.progress.current = Progress{Phase: PhaseIdle}
	return d
}

// Phase returns the current lifecycle phase.
func (d *Driver) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Progress returns the latest progress snapshot.
func (d *Driver) Progress() Progress {
	return d.progress.snapshot()
}

// Subscribe returns a channel that receives the current progress followed
// by updates, and is closed after the terminal update.
func (d *Driver) Subscribe() <-chan Progress {
	return d.progress.subscribe()
}

// Done is closed when the run reaches a terminal phase.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Result returns the outcome once the run has finished.
func (d *Driver) Result() (*Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.phase.Terminal() {
		return nil, ErrNotFinished
	}
	return d.result, nil
}

// Run generates one document per row, in row order. It returns the
// documents of the rows that succeeded; row failures are available from
// Result. A run-level failure returns the error and moves to PhaseFailed.
func (d *Driver) Run(ctx context.Context, job Job) ([]Document, error) {
	d.mu.Lock()
	if d.phase != PhaseIdle {
		d.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	d.phase = PhaseRunning
	d.mu.Unlock()

	elements := make([]canvas.Element, len(job.Elements))
	for i, e := range job.Elements {
		elements[i] = e.Clone()
	}
	rows := make([]tabular.Row, len(job.Rows))
	copy(rows, job.Rows)

	res := &Result{StartedAt: time.Now()}
	p := Progress{Phase: PhaseRunning, Total: len(rows)}
	d.progress.publish(p)

	d.logger.Info("generation started", "rows", len(rows), "elements", len(elements))

	if err := d.check(ctx, job, elements); err != nil {
		return nil, d.fail(res, p, err)
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, d.fail(res, p, err)
		}

		name := OutputName(i, row, job.NameColumn)
		data, err := job.Binder.Bind(ctx, i, row, elements)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, d.fail(res, p, ctx.Err())
		case err != nil:
			res.Errors = append(res.Errors, RowError{Index: i, Name: name, Reason: err.Error()})
			p.Failed++
			d.logger.Warn("row failed", "row", i+1, "error", err)
		default:
			res.Documents = append(res.Documents, Document{Index: i, Name: name, Data: data})
		}

		p.Completed++
		d.progress.publish(p)
	}

	p.Phase = PhaseCompleted
	d.finish(res, p)

	d.logger.Info("generation completed",
		"documents", len(res.Documents),
		"failed", p.Failed,
		"duration", res.Duration(),
	)
	return res.Documents, nil
}

// check validates a job before any row is bound. A job without rows
// completes vacuously whatever its elements.
func (d *Driver) check(ctx context.Context, job Job, elements []canvas.Element) error {
	if len(job.Rows) == 0 {
		return nil
	}
	if len(elements) == 0 {
		return ErrNoElements
	}
	if job.Binder == nil {
		return ErrNoBinder
	}
	if err := job.Binder.Prepare(ctx); err != nil {
		return fmt.Errorf("prepare template: %w", err)
	}
	return nil
}

func (d *Driver) fail(res *Result, p Progress, err error) error {
	p.Phase = PhaseFailed
	p.Error = err.Error()
	res.Documents = nil
	d.finish(res, p)
	d.logger.Error("generation failed", "error", err, "completed", p.Completed, "total", p.Total)
	return err
}

func (d *Driver) finish(res *Result, p Progress) {
	res.FinishedAt = time.Now()
	res.Progress = p

	d.mu.Lock()
	d.phase = p.Phase
	d.result = res
	d.mu.Unlock()

	d.progress.finish(p)
	close(d.done)
}
