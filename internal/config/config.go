// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server  ServerConfig
	Export  ExportConfig
	Fetch   FetchConfig
	Rate    RateLimitConfig
	Logging LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ExportConfig holds export task processing settings.
type ExportConfig struct {
	// TmpDir is the root directory for per-task working directories.
	// Empty means a directory under the OS temp dir.
	TmpDir string `env:"EXPORT_TMP_DIR"`

	// DefaultFormat is the artifact format used when a request does not
	// specify one: csv, json, xlsx or zip (default: csv)
	DefaultFormat string `env:"EXPORT_DEFAULT_FORMAT" default:"csv"`

	// MaxConcurrent is the maximum number of pipelines running at once (default: 4)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"4"`

	// RunTimeout bounds a single task end to end (default: 10m)
	RunTimeout time.Duration `env:"EXPORT_RUN_TIMEOUT" default:"10m"`

	// Retention is how long terminal task records and artifacts are kept (default: 24h)
	Retention time.Duration `env:"EXPORT_RETENTION" default:"24h"`

	// SweepInterval is how often expired tasks are cleaned up (default: 1h)
	SweepInterval time.Duration `env:"EXPORT_SWEEP_INTERVAL" default:"1h"`
}

// FetchConfig holds source fetching defaults. Per-request source descriptors
// override these.
type FetchConfig struct {
	// Timeout is the default per-fetch timeout (default: 30s)
	Timeout time.Duration `env:"FETCH_TIMEOUT" default:"30s"`

	// PageLimit is the default maximum number of pages pulled from a
	// paginated HTTP source (default: 10)
	PageLimit int `env:"FETCH_PAGE_LIMIT" default:"10"`

	// PageSize is the default number of records requested per page (default: 100)
	PageSize int `env:"FETCH_PAGE_SIZE" default:"100"`

	// DatabaseURL is the default PostgreSQL connection string used when a
	// database source descriptor omits its own. Optional.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// StartLimit is requests per minute for the task start endpoint (default: 10)
	StartLimit int `env:"RATE_LIMIT_START" default:"10"`
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
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
