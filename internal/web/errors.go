package web

// errors.go turns service errors into HTTP responses.
//
// Every error is:
//   - Logged with its technical detail and the request id
//   - Mapped to a user message through core.MapError
//   - Written as JSON for API calls, or as an HTML fragment for HTMX swaps
//
// statusFor picks the status code from the error's identity, so handlers
// only pass the error along.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/certgen/internal/artifacts"
	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/JonMunkholm/certgen/internal/generate"
	"github.com/JonMunkholm/certgen/internal/logging"
	"github.com/JonMunkholm/certgen/internal/pdfgen"
	"github.com/JonMunkholm/certgen/internal/surface"
	"github.com/JonMunkholm/certgen/internal/tabular"
	"github.com/JonMunkholm/certgen/internal/web/views"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errBadRequest  = errors.New("invalid request body")
	errNoFile      = errors.New("no file provided")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrRunNotFound),
		errors.Is(err, core.ErrDocumentNotFound),
		errors.Is(err, artifacts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManySessions),
		errors.Is(err, generate.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrRunInProgress),
		errors.Is(err, generate.ErrNotFinished),
		errors.Is(err, core.ErrNoData),
		errors.Is(err, surface.ErrNoTemplate),
		errors.Is(err, surface.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, tabular.ErrEmptyFile),
		errors.Is(err, tabular.ErrMalformed),
		errors.Is(err, tabular.ErrUnsupportedFormat),
		errors.Is(err, surface.ErrNotPDF),
		errors.Is(err, surface.ErrUnsupportedImage),
		errors.Is(err, pdfgen.ErrTemplateImport),
		errors.Is(err, core.ErrUnknownRole),
		errors.Is(err, core.ErrInvalidCanvas),
		errors.Is(err, core.ErrPageOutOfRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	msg := ue.User

	logger := logging.FromContext(r.Context())
	log := logger.Warn
	if status >= http.StatusInternalServerError {
		log = logger.Error
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", ue.Error(),
		"code", msg.Code,
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	if isHTMX(r) && !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
		return
	}
	respondErrorJSON(w, msg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json encode error", "error", err)
	}
}
