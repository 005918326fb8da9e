package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/go-chi/chi/v5"
)

// handleUploadTemplate loads a PDF template and waits for the load to
// settle, so the response already says whether the template is usable.
func (s *Server) handleUploadTemplate(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(w, r, s.cfg.Upload.MaxFileSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.LoadTemplate(requestContext(r), sessionID(r), data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTemplateState(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.TemplateState(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page int `json:"page"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	view, err := s.service.SetPage(r.Context(), sessionID(r), req.Page)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleUploadData parses an xlsx or csv participant list and returns its
// summary with the first rows.
func (s *Server) handleUploadData(w http.ResponseWriter, r *http.Request) {
	data, name, err := readUpload(w, r, s.cfg.Upload.MaxFileSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := requestContext(r)
	id := sessionID(r)
	summary, err := s.service.LoadData(ctx, id, name, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	preview, err := s.service.Preview(ctx, id, core.DefaultPreviewRows)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"preview": preview,
	})
}

func (s *Server) handleDataPreview(w http.ResponseWriter, r *http.Request) {
	n := parseIntParam(r, "n", core.DefaultPreviewRows)
	preview, err := s.service.Preview(r.Context(), sessionID(r), n)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleUploadImage stores the signature or seal image for the session.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	role, err := canvas.ParseKind(chi.URLParam(r, "role"))
	if err != nil || !role.IsImage() {
		s.respondError(w, r, fmt.Errorf("%w: %q", core.ErrUnknownRole, chi.URLParam(r, "role")))
		return
	}

	data, _, err := readUpload(w, r, s.cfg.Upload.MaxImageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	asset, err := s.service.UploadImage(requestContext(r), sessionID(r), role, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}
