// Package surface manages the certificate template and the image assets
// placed on it.
//
// A template load is asynchronous: Load returns a LoadState future and fires
// the registered callbacks as it progresses. Starting a new load supersedes
// any load still in flight; its completion is dropped.
package surface

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tsawler/tabula/format"
	"github.com/tsawler/tabula/reader"
)

// ErrNotPDF is returned when template bytes are not a PDF document.
var ErrNotPDF = errors.New("template is not a pdf document")

// ErrNoTemplate is returned when an operation needs a loaded template.
var ErrNoTemplate = errors.New("no template loaded")

// ErrSuperseded is reported to waiters of a load replaced by a newer one.
var ErrSuperseded = errors.New("template load superseded by a newer upload")

// Template is an immutable loaded PDF.
type Template struct {
	ID        string
	Data      []byte
	PageCount int
	LoadedAt  time.Time
}

// Size returns the template size in bytes.
func (t *Template) Size() int {
	return len(t.Data)
}

// Callbacks observe template loads. Any field may be nil.
type Callbacks struct {
	OnLoadStart   func()
	OnLoadSuccess func(pageCount int)
	OnLoadError   func(err error)
}

// PageCounter reports the number of pages in a PDF.
type PageCounter func(ctx context.Context, data []byte) (int, error)

// Status is the phase of a LoadState.
type Status string

const (
	StatusPending Status = "pending"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// LoadState is the future returned by Surface.Load.
type LoadState struct {
	done chan struct{}

	mu        sync.Mutex
	status    Status
	pageCount int
	err       error
}

func newLoadState() *LoadState {
	return &LoadState{done: make(chan struct{}), status: StatusPending}
}

func (l *LoadState) finish(pageCount int, err error) {
	l.mu.Lock()
	if err != nil {
		l.status = StatusFailed
		l.err = err
	} else {
		l.status = StatusLoaded
		l.pageCount = pageCount
	}
	l.mu.Unlock()
	close(l.done)
}

// Status returns the current phase without blocking.
func (l *LoadState) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Done is closed when the load settles.
func (l *LoadState) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the load settles or ctx is done.
func (l *LoadState) Wait(ctx context.Context) (int, error) {
	select {
	case <-l.done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pageCount, l.err
}

// Surface holds the current template and the displayed page.
type Surface struct {
	mu        sync.Mutex
	seq       uint64
	current   *LoadState
	template  *Template
	page      int
	callbacks Callbacks
	countFn   PageCounter
}

// New returns an empty surface. A nil counter uses CountPages.
func New(cb Callbacks, counter PageCounter) *Surface {
	if counter == nil {
		counter = CountPages
	}
	return &Surface{callbacks: cb, countFn: counter, page: 1}
}

// Load starts loading data as the new template. The returned state settles
// with the page count, with ErrNotPDF for non-PDF input, or with
// ErrSuperseded when a later Load started first.
func (s *Surface) Load(ctx context.Context, data []byte) *LoadState {
	state := newLoadState()
	buf := append([]byte(nil), data...)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.current = state
	cb := s.callbacks
	s.mu.Unlock()

	if cb.OnLoadStart != nil {
		cb.OnLoadStart()
	}

	go func() {
		pages, err := s.load(ctx, buf)

		s.mu.Lock()
		stale := seq != s.seq
		if !stale && err == nil {
			s.template = &Template{
				ID:        uuid.NewString(),
				Data:      buf,
				PageCount: pages,
				LoadedAt:  time.Now(),
			}
			s.page = 1
		}
		s.mu.Unlock()

		if stale {
			state.finish(0, ErrSuperseded)
			return
		}
		state.finish(pages, err)

		if err != nil {
			if cb.OnLoadError != nil {
				cb.OnLoadError(err)
			}
			return
		}
		if cb.OnLoadSuccess != nil {
			cb.OnLoadSuccess(pages)
		}
	}()

	return state
}

func (s *Surface) load(ctx context.Context, data []byte) (int, error) {
	kind, err := format.DetectFromReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || kind != format.PDF {
		return 0, ErrNotPDF
	}
	pages, err := s.countFn(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("%w: document has no pages", ErrNotPDF)
	}
	return pages, nil
}

// State returns the most recent load, or nil if none was started.
func (s *Surface) State() *LoadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Template returns the loaded template. Callers must not modify Data.
func (s *Surface) Template() (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.template == nil {
		return nil, ErrNoTemplate
	}
	return s.template, nil
}

// Page returns the displayed page, starting at 1.
func (s *Surface) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// SetPage changes the displayed page. It returns false when n is outside
// [1, PageCount] or no template is loaded.
func (s *Surface) SetPage(n int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.template == nil || n < 1 || n > s.template.PageCount {
		return false
	}
	s.page = n
	return true
}

// CountPages reads the page tree of a PDF. The tabula reader works on files,
// so the bytes are spooled to a temporary file first.
func CountPages(ctx context.Context, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.CreateTemp("", "certgen-template-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("spool template: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return 0, fmt.Errorf("spool template: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("spool template: %w", err)
	}

	doc, err := reader.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n, err := doc.PageCount()
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}
