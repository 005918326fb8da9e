package web

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/web/views"
	"github.com/go-chi/chi/v5"
)

type addElementRequest struct {
	Kind string `json:"kind"`
	canvas.Patch
}

// handleAddElement places a text field or an image element. Attributes in
// the body override the defaults.
func (s *Server) handleAddElement(w http.ResponseWriter, r *http.Request) {
	var req addElementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	kind, err := canvas.ParseKind(req.Kind)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	e, err := s.service.AddElement(r.Context(), sessionID(r), kind, req.Patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateElement(w http.ResponseWriter, r *http.Request) {
	var patch canvas.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.respondError(w, r, err)
		return
	}

	e, ok, err := s.service.UpdateElement(r.Context(), sessionID(r), chi.URLParam(r, "elementID"), patch)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleRemoveElement answers 204 whether or not the element still existed.
func (s *Server) handleRemoveElement(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.RemoveElement(r.Context(), sessionID(r), chi.URLParam(r, "elementID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSelect selects an element, or clears the selection for a null id.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ElementID *string `json:"element_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	id := ""
	if req.ElementID != nil {
		id = *req.ElementID
	}

	selected, err := s.service.Select(r.Context(), sessionID(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"selected": selected})
}

// handlePointerDown starts a drag on element_id, or hit-tests x and y when
// no id is given.
func (s *Server) handlePointerDown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ElementID string   `json:"element_id"`
		X         *float64 `json:"x"`
		Y         *float64 `json:"y"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	var (
		state *core.PointerState
		err   error
	)
	switch {
	case req.ElementID != "":
		state, err = s.service.PointerDown(r.Context(), sessionID(r), req.ElementID)
	case req.X != nil && req.Y != nil:
		state, err = s.service.PointerDownAt(r.Context(), sessionID(r), *req.X, *req.Y)
	default:
		err = fmt.Errorf("%w: element_id or x and y required", errBadRequest)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePointerMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientX   float64     `json:"client_x"`
		ClientY   float64     `json:"client_y"`
		Container canvas.Rect `json:"container"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	state, err := s.service.PointerMove(r.Context(), sessionID(r), req.ClientX, req.ClientY, req.Container)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.PointerUp(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSetCanvas records the size of the client's canvas, which decides
// how field positions map onto the template page.
func (s *Server) handleSetCanvas(w http.ResponseWriter, r *http.Request) {
	var size pdfgen.Size
	if err := decodeJSON(w, r, &size); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.SetCanvas(r.Context(), sessionID(r), size); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, size)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Render(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleLayout downloads the placed fields as a layout file for the CLI.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	layout, err := s.service.Layout(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="layout.json"`)
	writeJSON(w, http.StatusOK, layout)
}

// handleCanvas renders the canvas as an HTML fragment for HTMX swaps.
func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	view, err := s.service.Render(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	snap, err := s.service.Snapshot(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	images := make(map[string]string, len(snap.Images))
	for _, asset := range snap.Images {
		images[asset.ID] = "data:image/" + asset.Format + ";base64," + base64.StdEncoding.EncodeToString(asset.Data)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Canvas(id, view, images).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}
