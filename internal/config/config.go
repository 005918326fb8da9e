// Package config loads certgen's settings from environment variables,
// applies defaults and validates everything on startup so a misconfigured
// server fails before it accepts requests.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Session  SessionConfig
	Upload   UploadConfig
	Generate GenerateConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except the progress stream.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SessionConfig controls editor sessions and their bearer tokens.
type SessionConfig struct {
	// Secret signs session tokens (HS256). At least 32 bytes.
	Secret string `env:"SESSION_SECRET" required:"true"`

	// TTL is how long an idle session survives (default: 2h)
	TTL time.Duration `env:"SESSION_TTL" default:"2h"`

	// MaxSessions caps concurrently open sessions (default: 500)
	MaxSessions int `env:"SESSION_MAX" default:"500"`

	// SweepInterval is how often idle sessions are evicted (default: 1m)
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"1m"`
}

// UploadConfig bounds uploaded files.
type UploadConfig struct {
	// MaxFileSize applies to templates and data files (default: 25MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"26214400"`

	// MaxImageSize applies to signature and seal images (default: 5MB)
	MaxImageSize int64 `env:"UPLOAD_MAX_IMAGE_SIZE" default:"5242880"`
}

// GenerateConfig controls batch generation.
type GenerateConfig struct {
	MaxConcurrent int           `env:"GENERATE_MAX_CONCURRENT" default:"2"`
	MaxWaitTime   time.Duration `env:"GENERATE_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a whole run (default: 10m)
	Timeout time.Duration `env:"GENERATE_TIMEOUT" default:"10m"`

	// NameColumn is the data column used in output file names.
	NameColumn string `env:"GENERATE_NAME_COLUMN" default:"Name"`

	// FontDir holds TTF files for the editor fonts. Empty uses core fonts.
	FontDir string `env:"GENERATE_FONT_DIR"`

	// VerificationCode stamps each certificate: "", "qr" or "pdf417".
	VerificationCode string `env:"GENERATE_VERIFICATION_CODE"`

	CanvasWidth  float64 `env:"CANVAS_WIDTH" default:"800"`
	CanvasHeight float64 `env:"CANVAS_HEIGHT" default:"600"`
}

// StorageConfig selects where generated documents wait for download.
type StorageConfig struct {
	// RedisAddr enables the Redis store when set; otherwise memory is used.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" default:"0"`

	// ArtifactTTL is how long documents stay downloadable (default: 1h)
	ArtifactTTL time.Duration `env:"ARTIFACT_TTL" default:"1h"`

	// ArtifactKey (64 hex chars) encrypts documents at rest when set.
	ArtifactKey string `env:"ARTIFACT_KEY"`
}

// DatabaseConfig enables the PostgreSQL run audit when URL is set.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// UploadLimit is requests per minute for upload and generate endpoints.
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey gates all /api routes behind X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
