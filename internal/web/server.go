// Package web provides the HTTP API and editor fragments for certgen.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/certgen/internal/config"
	"github.com/JonMunkholm/certgen/internal/core"
	mw "github.com/JonMunkholm/certgen/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the certificate editor.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer wires routes and middleware for service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	// Uploads and generation get a tighter per-IP budget.
	heavy := func(next http.Handler) http.Handler { return next }
	if s.cfg.Rate.Enabled {
		heavy = s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware
	}
	timeout := middleware.Timeout(s.cfg.Server.RequestTimeout)
	sessionAuth := mw.SessionAuth(s.service.VerifyToken, "id")

	s.router.Get("/healthz", s.handleHealth)

	// Editor fragment
	s.router.With(timeout, sessionAuth).Get("/sessions/{id}/canvas", s.handleCanvas)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.With(timeout, heavy).Post("/sessions", s.handleCreateSession)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Use(sessionAuth)

			// Progress streams stay open for the whole run.
			r.Get("/runs/{runID}/progress", s.handleRunProgress)

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Get("/", s.handleSnapshot)
				r.Delete("/", s.handleEndSession)

				// Uploads
				r.With(heavy).Post("/template", s.handleUploadTemplate)
				r.Get("/template", s.handleTemplateState)
				r.Put("/template/page", s.handleSetPage)
				r.With(heavy).Post("/data", s.handleUploadData)
				r.Get("/data/preview", s.handleDataPreview)
				r.With(heavy).Post("/images/{role}", s.handleUploadImage)

				// Editing
				r.Post("/elements", s.handleAddElement)
				r.Patch("/elements/{elementID}", s.handleUpdateElement)
				r.Delete("/elements/{elementID}", s.handleRemoveElement)
				r.Put("/selection", s.handleSelect)
				r.Post("/pointer/down", s.handlePointerDown)
				r.Post("/pointer/move", s.handlePointerMove)
				r.Post("/pointer/up", s.handlePointerUp)
				r.Put("/canvas", s.handleSetCanvas)
				r.Get("/render", s.handleRender)
				r.Get("/layout", s.handleLayout)

				// Generation
				r.With(heavy).Post("/generate", s.handleGenerate)
				r.Get("/runs/{runID}", s.handleRunResult)
				r.Get("/runs/{runID}/documents/{index}", s.handleDocument)
				r.Get("/runs/{runID}/archive", s.handleArchive)
			})
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its rate limiters.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			// Canvas fragments embed signature images as data URIs.
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'")
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request budget per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int
	window   time.Duration
	done     chan struct{}
	once     sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	s.limiters = append(s.limiters, rl)
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastReset) > rl.window*2 {
					delete(rl.visitors, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := mw.ClientIP(r)
		if !rl.allow(ip) {
			slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, core.MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
