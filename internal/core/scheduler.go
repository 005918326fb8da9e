package core

// scheduler.go runs periodic maintenance for the service.
//
// Each sweep:
//  1. Ends sessions idle for longer than SessionTTL (their runs are
//     cancelled and their documents deleted)
//  2. Drops expired documents when artifacts live in process memory
//
// The sweeper is long-running and stops with its context. Failures are
// logged and never stop the loop.

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/certgen/internal/artifacts"
)

// DefaultSweepInterval is used when StartSweeper is given no interval.
const DefaultSweepInterval = time.Minute

// SweepStats describes one sweep.
type SweepStats struct {
	Sessions  int
	Artifacts int
}

// StartSweeper evicts idle sessions every interval until ctx is done. It
// blocks; run it in its own goroutine.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	slog.Info("session sweeper started",
		"interval", interval,
		"session_ttl", s.opts.SessionTTL,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one maintenance pass.
func (s *Service) Sweep(ctx context.Context) SweepStats {
	start := time.Now()
	cutoff := s.now().Add(-s.opts.SessionTTL)

	s.mu.RLock()
	var idle []string
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	var stats SweepStats
	for _, id := range idle {
		if err := s.EndSession(ctx, id); err != nil {
			// Ended concurrently.
			continue
		}
		stats.Sessions++
	}

	if sw, ok := s.opts.Artifacts.(artifacts.Sweeper); ok {
		stats.Artifacts = sw.Sweep()
	}

	if stats.Sessions > 0 || stats.Artifacts > 0 {
		slog.Info("sweep completed",
			"sessions_evicted", stats.Sessions,
			"artifacts_expired", stats.Artifacts,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return stats
}
