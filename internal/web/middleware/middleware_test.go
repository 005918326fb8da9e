package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/certgen/internal/config"
	"github.com/go-chi/chi/v5"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(r.RemoteAddr))
})

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "no trusted proxies ignores headers",
			remote:  "10.0.0.5:4000",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			want:    "10.0.0.5:4000",
		},
		{
			name:    "trusted cidr uses X-Real-IP",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.5:4000",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			want:    "203.0.113.9",
		},
		{
			name:    "trusted bare address uses first forwarded entry",
			trusted: []string{"192.168.1.1"},
			remote:  "192.168.1.1:80",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.1.1"},
			want:    "198.51.100.7",
		},
		{
			name:    "untrusted peer keeps its address",
			trusted: []string{"10.0.0.0/8"},
			remote:  "172.16.0.1:80",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:    "172.16.0.1:80",
		},
		{
			name:    "garbage header is ignored",
			trusted: []string{"10.0.0.0/8", "not-a-cidr"},
			remote:  "10.0.0.5:4000",
			headers: map[string]string{"X-Forwarded-For": "nonsense"},
			want:    "10.0.0.5:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			TrustedRealIP(tt.trusted)(ok).ServeHTTP(rec, req)

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"203.0.113.9:5555", "203.0.113.9"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"198.51.100.7", "198.51.100.7"},
		{"pipe", "pipe"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SecurityConfig
		key  string
		want int
	}{
		{"disabled", config.SecurityConfig{}, "", http.StatusOK},
		{"missing key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, "", http.StatusUnauthorized},
		{"wrong key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, "k2", http.StatusForbidden},
		{"valid second key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, "k2", http.StatusOK},
		{"no keys configured", config.SecurityConfig{RequireAPIKey: true}, "k1", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(&tt.cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSessionAuth(t *testing.T) {
	verify := func(token string) (string, error) {
		if sid, found := strings.CutPrefix(token, "tok-"); found {
			return sid, nil
		}
		return "", errors.New("bad token")
	}

	r := chi.NewRouter()
	r.With(SessionAuth(verify, "id")).HandleFunc("/s/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		method string
		target string
		auth   string
		want   int
	}{
		{"bearer", http.MethodPost, "/s/abc", "Bearer tok-abc", http.StatusOK},
		{"lowercase scheme", http.MethodPost, "/s/abc", "bearer tok-abc", http.StatusOK},
		{"query on GET", http.MethodGet, "/s/abc?token=tok-abc", "", http.StatusOK},
		{"query ignored on POST", http.MethodPost, "/s/abc?token=tok-abc", "", http.StatusUnauthorized},
		{"basic scheme", http.MethodGet, "/s/abc", "Basic tok-abc", http.StatusUnauthorized},
		{"invalid token", http.MethodGet, "/s/abc", "Bearer nope", http.StatusUnauthorized},
		{"other session", http.MethodGet, "/s/abc", "Bearer tok-xyz", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			if rec.Code != http.StatusOK && !strings.Contains(rec.Body.String(), `"code":"SES002"`) {
				t.Errorf("body = %s, want SES002", rec.Body)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := buf.String()
	for _, want := range []string{`"path":"/brew"`, `"status":418`, `"bytes":15`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}
