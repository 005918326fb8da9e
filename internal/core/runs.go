package core

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/certgen/internal/audit"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/google/uuid"
)

// activeRun tracks one generation run from start until its documents
// expire. done is closed once the driver has finished and every document
// is in the artifact store.
type activeRun struct {
	ID        string
	SessionID string
	StartedAt time.Time

	driver *generate.Driver
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	docs     []DocumentInfo
	errors   []generate.RowError
	finished time.Time
	cleanup  *time.Timer
}

func artifactKey(runID string, index int) string {
	return runID + "/" + strconv.Itoa(index)
}

func (r *activeRun) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.docs))
	for i, d := range r.docs {
		keys[i] = artifactKey(r.ID, d.Index)
	}
	return keys
}

func (r *activeRun) finishedYet() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// StartRun snapshots the session's fields and rows and generates one
// certificate per row in the background. Only one run per session may be
// in progress. It blocks while every generation slot is taken, up to the
// limiter's wait time.
func (s *Service) StartRun(ctx context.Context, id string) (*RunResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.activeRun != "" {
		sess.mu.Unlock()
		return nil, ErrRunInProgress
	}
	if sess.table == nil {
		sess.mu.Unlock()
		return nil, ErrNoData
	}
	tpl, err := sess.surface.Template()
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}

	nameColumn, ok := sess.table.FindColumn(s.opts.NameColumn)
	if !ok {
		nameColumn = s.opts.NameColumn
	}
	runID := uuid.NewString()
	logger := s.logger(ctx, id).With("run_id", runID)
	binderOpts := s.opts.Binder
	binderOpts.Logger = logger

	images := make(map[string]*surface.ImageAsset, len(sess.images))
	for _, asset := range sess.images {
		images[asset.ID] = asset
	}
	job := generate.Job{
		Elements:   sess.store.Elements(),
		Rows:       sess.table.Rows,
		NameColumn: nameColumn,
		Binder:     pdfgen.NewBinder(tpl, sess.canvas, images, binderOpts),
	}
	sess.activeRun = runID
	sess.mu.Unlock()

	if err := s.opts.Limiter.Acquire(ctx); err != nil {
		sess.mu.Lock()
		if sess.activeRun == runID {
			sess.activeRun = ""
		}
		sess.mu.Unlock()
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RunTimeout)
	run := &activeRun{
		ID:        runID,
		SessionID: id,
		StartedAt: s.now(),
		driver:    generate.NewDriver(logger),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	// EndSession may have run while we waited for a slot.
	s.mu.Lock()
	if s.sessions[id] != sess {
		s.mu.Unlock()
		cancel()
		s.opts.Limiter.Release()
		return nil, ErrSessionNotFound
	}
	s.runs[runID] = run
	s.mu.Unlock()

	go s.execute(runCtx, sess, run, job)

	return s.runResult(run), nil
}

// execute runs the driver, moves the documents into the artifact store and
// schedules their expiry.
func (s *Service) execute(ctx context.Context, sess *Session, run *activeRun, job generate.Job) {
	defer s.opts.Limiter.Release()
	defer run.cancel()

	docs, runErr := run.driver.Run(ctx, job)

	// Documents are stored even if the session ended meanwhile; discardRuns
	// waits for done and deletes them.
	store := context.WithoutCancel(ctx)
	infos := make([]DocumentInfo, 0, len(docs))
	var storeErrs []generate.RowError
	for _, d := range docs {
		if err := s.opts.Artifacts.Put(store, artifactKey(run.ID, d.Index), d.Data); err != nil {
			storeErrs = append(storeErrs, generate.RowError{
				Index:  d.Index,
				Name:   d.Name,
				Reason: fmt.Sprintf("store document: %v", err),
			})
			continue
		}
		infos = append(infos, DocumentInfo{Index: d.Index, Name: d.Name, Size: len(d.Data)})
	}

	res, _ := run.driver.Result()
	run.mu.Lock()
	run.docs = infos
	if res != nil {
		run.errors = append(run.errors, res.Errors...)
	}
	run.errors = append(run.errors, storeErrs...)
	run.finished = s.now()
	run.cleanup = time.AfterFunc(s.opts.ArtifactTTL, func() { s.expireRun(run) })
	rowErrors := len(run.errors)
	run.mu.Unlock()
	close(run.done)

	sess.mu.Lock()
	if sess.activeRun == run.ID {
		sess.activeRun = ""
	}
	sess.mu.Unlock()

	p := run.driver.Progress()
	entry := audit.Entry{
		SessionID: run.SessionID,
		RunID:     run.ID,
		Rows:      p.Total,
		Documents: len(infos),
		Failed:    rowErrors,
	}
	if runErr != nil {
		entry.Action = audit.ActionRunFailed
		entry.Detail = runErr.Error()
	} else {
		entry.Action = audit.ActionRunCompleted
	}
	s.record(store, entry)
}

// expireRun forgets a run whose documents have outlived ArtifactTTL.
func (s *Service) expireRun(run *activeRun) {
	s.mu.Lock()
	delete(s.runs, run.ID)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.opts.Artifacts.Delete(ctx, run.keys()...); err != nil {
		s.logger(ctx, run.SessionID).Warn("expire run documents", "run_id", run.ID, "error", err)
	}
}

// detachRuns removes every run of a session from the registry. Callers hold
// s.mu.
func (s *Service) detachRuns(sessionID string) []*activeRun {
	var runs []*activeRun
	for id, run := range s.runs {
		if run.SessionID == sessionID {
			runs = append(runs, run)
			delete(s.runs, id)
		}
	}
	return runs
}

// discardRuns cancels runs and deletes their documents once they settle.
func (s *Service) discardRuns(ctx context.Context, runs []*activeRun) {
	ctx = context.WithoutCancel(ctx)
	for _, run := range runs {
		run.cancel()
		go func(run *activeRun) {
			<-run.done
			run.mu.Lock()
			if run.cleanup != nil {
				run.cleanup.Stop()
			}
			run.mu.Unlock()
			if err := s.opts.Artifacts.Delete(ctx, run.keys()...); err != nil {
				s.logger(ctx, run.SessionID).Warn("discard run documents", "run_id", run.ID, "error", err)
			}
		}(run)
	}
}

// run returns runID if it belongs to sessionID.
func (s *Service) run(sessionID, runID string) (*activeRun, error) {
	if _, err := s.session(sessionID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok || run.SessionID != sessionID {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (s *Service) runResult(run *activeRun) *RunResult {
	finished := run.finishedYet()
	p := run.driver.Progress()
	res := &RunResult{
		RunID:     run.ID,
		SessionID: run.SessionID,
		Progress:  p,
		Percent:   p.Percent(),
		StartedAt: run.StartedAt,
		Documents: []DocumentInfo{},
	}
	if !finished {
		return res
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	res.Documents = append(res.Documents, run.docs...)
	res.Errors = append(res.Errors, run.errors...)
	res.FinishedAt = run.finished
	return res
}

// RunResult returns the progress of a run and, once it has finished, its
// documents and row errors.
func (s *Service) RunResult(ctx context.Context, sessionID, runID string) (*RunResult, error) {
	run, err := s.run(sessionID, runID)
	if err != nil {
		return nil, err
	}
	return s.runResult(run), nil
}

// SubscribeRun streams progress updates for a run. The channel receives
// the current progress first and is closed after the terminal update,
// which is only sent once the run's documents can be downloaded. It is
// also closed when ctx is done.
func (s *Service) SubscribeRun(ctx context.Context, sessionID, runID string) (<-chan generate.Progress, error) {
	run, err := s.run(sessionID, runID)
	if err != nil {
		return nil, err
	}

	src := run.driver.Subscribe()
	out := make(chan generate.Progress, 1)
	go func() {
		defer close(out)
		for p := range src {
			if p.Phase.Terminal() {
				select {
				case <-run.done:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Document returns the name and bytes of one generated certificate.
func (s *Service) Document(ctx context.Context, sessionID, runID string, index int) (string, []byte, error) {
	run, err := s.run(sessionID, runID)
	if err != nil {
		return "", nil, err
	}
	if !run.finishedYet() {
		return "", nil, generate.ErrNotFinished
	}

	var name string
	run.mu.Lock()
	for _, d := range run.docs {
		if d.Index == index {
			name = d.Name
			break
		}
	}
	run.mu.Unlock()
	if name == "" {
		return "", nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, index)
	}

	data, err := s.opts.Artifacts.Get(ctx, artifactKey(run.ID, index))
	if err != nil {
		return "", nil, fmt.Errorf("document %d: %w", index, err)
	}
	return name, data, nil
}

// WriteArchive writes every document of a finished run to w as one ZIP.
func (s *Service) WriteArchive(ctx context.Context, sessionID, runID string, w io.Writer) error {
	run, err := s.run(sessionID, runID)
	if err != nil {
		return err
	}
	if !run.finishedYet() {
		return generate.ErrNotFinished
	}

	run.mu.Lock()
	infos := append([]DocumentInfo(nil), run.docs...)
	run.mu.Unlock()

	docs := make([]generate.Document, 0, len(infos))
	for _, info := range infos {
		data, err := s.opts.Artifacts.Get(ctx, artifactKey(run.ID, info.Index))
		if err != nil {
			return fmt.Errorf("document %d: %w", info.Index, err)
		}
		docs = append(docs, generate.Document{Index: info.Index, Name: info.Name, Data: data})
	}
	return generate.WriteArchive(w, docs)
}
