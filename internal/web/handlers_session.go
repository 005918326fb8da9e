package web

import (
	"net/http"
)

// handleHealth reports liveness plus session and generation load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"sessions":   s.service.SessionCount(),
		"generation": s.service.LimiterStatus(),
	})
}

// handleCreateSession opens an editor session and returns its token.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.CreateSession(requestContext(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEndSession discards the session; the client starts over with a new
// one.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.EndSession(requestContext(r), sessionID(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
