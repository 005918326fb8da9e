package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/certgen/internal/config"
	"github.com/go-chi/chi/v5"
)

func deny(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "message": message, "code": code})
}

// APIKeyAuth checks X-API-Key against the configured keys. It passes every
// request through when RequireAPIKey is off, and rejects every request when
// it is on but no keys are configured.
func APIKeyAuth(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.RequireAPIKey {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get("X-API-Key")
			switch {
			case key == "":
				slog.Warn("auth: missing API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				deny(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			case !isValidAPIKey(key, cfg.APIKeys):
				slog.Warn("auth: invalid API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				deny(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isValidAPIKey compares against every key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, k := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}

// SessionVerifier returns the session id carried by a bearer token.
type SessionVerifier func(token string) (string, error)

// SessionAuth requires a session token whose session id equals the {param}
// URL parameter. The token is read from "Authorization: Bearer", or from
// the token query parameter on GET requests so that EventSource streams and
// download links can authenticate.
func SessionAuth(verify SessionVerifier, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && r.Method == http.MethodGet {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				deny(w, http.StatusUnauthorized, "missing session token", "SES002")
				return
			}

			sid, err := verify(token)
			if err != nil {
				slog.Warn("auth: rejected session token", "path", r.URL.Path, "error", err)
				deny(w, http.StatusUnauthorized, "invalid session token", "SES002")
				return
			}
			if subtle.ConstantTimeCompare([]byte(sid), []byte(chi.URLParam(r, param))) != 1 {
				deny(w, http.StatusForbidden, "token does not belong to this session", "SES002")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
