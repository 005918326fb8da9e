package web

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/logging"
	"github.com/go-chi/chi/v5"
)

// handleGenerate starts a generation run for the session.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	run, err := s.service.StartRun(requestContext(r), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/sessions/%s/runs/%s", run.SessionID, run.RunID))
	writeJSON(w, http.StatusAccepted, run)
}

// handleRunProgress streams run progress as Server-Sent Events. Each event
// id is the completion percentage, so a reconnecting client that sends
// Last-Event-ID (or ?lastEventId=) skips updates it has already seen. The
// stream ends with a "complete" event carrying the run result.
func (s *Server) handleRunProgress(w http.ResponseWriter, r *http.Request) {
	id, runID := sessionID(r), chi.URLParam(r, "runID")

	lastSeen := -1
	last := r.Header.Get("Last-Event-ID")
	if last == "" {
		last = r.URL.Query().Get("lastEventId")
	}
	if n, err := strconv.Atoi(last); err == nil {
		lastSeen = n
	}

	progress, err := s.service.SubscribeRun(r.Context(), id, runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	for {
		select {
		case p, ok := <-progress:
			if !ok {
				res, err := s.service.RunResult(r.Context(), id, runID)
				if err != nil {
					fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				} else {
					data, _ := json.Marshal(res)
					fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				}
				rc.Flush()
				return
			}

			pct := p.Percent()
			if !p.Phase.Terminal() && pct <= lastSeen {
				continue
			}
			data, _ := json.Marshal(struct {
				generate.Progress
				Percent int `json:"percent"`
			}{p, pct})
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", pct, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.RunResult(r.Context(), sessionID(r), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDocument serves one certificate by its zero-based row index.
func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		s.respondError(w, r, fmt.Errorf("%w: bad document index", errBadRequest))
		return
	}

	name, data, err := s.service.Document(r.Context(), sessionID(r), chi.URLParam(r, "runID"), index)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// handleArchive serves every certificate of a run as one ZIP.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, runID := sessionID(r), chi.URLParam(r, "runID")

	// Check before headers go out so errors still get a proper status.
	res, err := s.service.RunResult(r.Context(), id, runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if res.FinishedAt.IsZero() {
		s.respondError(w, r, generate.ErrNotFinished)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": generate.ArchiveName}))
	if err := s.service.WriteArchive(r.Context(), id, runID, w); err != nil {
		// Part of the archive may already be on the wire.
		logging.FromContext(r.Context()).Error("write archive", "run_id", runID, "error", err)
	}
}
