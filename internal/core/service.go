package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/certgen/internal/artifacts"
	"github.com/JonMunkholm/certgen/internal/audit"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/logging"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/google/uuid"
)

// Options configures a Service. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	// SessionTTL evicts sessions idle for longer (default: 2h).
	SessionTTL time.Duration

	// MaxSessions caps open sessions (default: 500).
	MaxSessions int

	// Canvas is the editor canvas size assumed until the client reports
	// its own (default: 800x600).
	Canvas pdfgen.Size

	// NameColumn names the data column used for output file names.
	NameColumn string

	// RunTimeout bounds one generation run (default: 10m).
	RunTimeout time.Duration

	// ArtifactTTL is how long finished documents stay downloadable
	// (default: 1h).
	ArtifactTTL time.Duration

	// Binder tunes PDF output.
	Binder pdfgen.Options

	// PageCounter reads template page counts (default: surface.CountPages).
	PageCounter surface.PageCounter

	Limiter   *generate.Limiter
	Artifacts artifacts.Store
	Audit     audit.Recorder
	Tokens    *TokenIssuer
}

// Service owns all editor sessions and generation runs.
type Service struct {
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	runs     map[string]*activeRun
}

// NewService applies defaults to opts and returns an empty service.
func NewService(opts Options) (*Service, error) {
	if opts.Tokens == nil {
		return nil, fmt.Errorf("core: token issuer is required")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 500
	}
	if opts.Canvas.W <= 0 || opts.Canvas.H <= 0 {
		opts.Canvas = pdfgen.Size{W: pdfgen.DefaultCanvasWidth, H: pdfgen.DefaultCanvasHeight}
	}
	if opts.NameColumn == "" {
		opts.NameColumn = "Name"
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	if opts.ArtifactTTL <= 0 {
		opts.ArtifactTTL = artifacts.DefaultTTL
	}
	if opts.Limiter == nil {
		opts.Limiter = generate.NewLimiter(0, 0)
	}
	if opts.Artifacts == nil {
		opts.Artifacts = artifacts.NewMemoryStore(opts.ArtifactTTL)
	}
	if opts.Audit == nil {
		opts.Audit = audit.LogRecorder{}
	}

	return &Service{
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
		runs:     make(map[string]*activeRun),
	}, nil
}

// CreateSession opens a new editor session and issues its token.
func (s *Service) CreateSession(ctx context.Context) (*SessionInfo, error) {
	s.mu.Lock()
	if len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	sess := newSession(uuid.NewString(), s.opts.Canvas, s.now())
	sess.surface = s.newSurface(sess.ID)
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	token, exp, err := s.opts.Tokens.Issue(sess.ID)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, sess.ID)
		s.mu.Unlock()
		return nil, err
	}

	s.record(ctx, audit.Entry{Action: audit.ActionSessionCreated, SessionID: sess.ID})
	logging.WithFields(ctx, "session_id", sess.ID).Info("session created")

	return &SessionInfo{ID: sess.ID, Token: token, ExpiresAt: exp}, nil
}

// VerifyToken returns the session id carried by token.
func (s *Service) VerifyToken(token string) (string, error) {
	return s.opts.Tokens.Verify(token)
}

// session looks up id and marks it active.
func (s *Service) session(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch(s.now())
	return sess, nil
}

// EndSession discards a session, its runs and their stored documents.
func (s *Service) EndSession(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	runs := s.detachRuns(id)
	s.mu.Unlock()

	s.discardRuns(ctx, runs)
	sess.close()

	s.record(ctx, audit.Entry{Action: audit.ActionSessionEnded, SessionID: id})
	logging.WithFields(ctx, "session_id", id).Info("session ended")
	return nil
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// LimiterStatus reports generation slot usage.
func (s *Service) LimiterStatus() generate.LimiterStatus {
	return s.opts.Limiter.Status()
}

// WaitForRuns blocks until no generation run holds a slot or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.opts.Limiter.WaitForDrain(ctx)
}

// Close releases the artifact store.
func (s *Service) Close() error {
	return s.opts.Artifacts.Close()
}

// record writes an audit entry, enriching it with the caller's address.
// Failures are logged and otherwise ignored.
func (s *Service) record(ctx context.Context, e audit.Entry) {
	if e.IPAddress == "" {
		e.IPAddress = ClientIP(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = UserAgent(ctx)
	}
	if err := s.opts.Audit.Record(context.WithoutCancel(ctx), e); err != nil {
		logging.FromContext(ctx).Warn("audit record failed", "action", e.Action, "error", err)
	}
}

func (s *Service) logger(ctx context.Context, sessionID string) *slog.Logger {
	return logging.WithFields(ctx, "session_id", sessionID)
}
