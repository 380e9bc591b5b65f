// Package config provides centralized configuration management for the pipeline.
// It resolves settings from environment variables and an optional config file,
// applies sensible defaults, and validates everything on startup to fail fast
// on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source      SourceConfig
	Destination DestinationConfig
	Pipeline    PipelineConfig
	Server      ServerConfig
	Logging     LoggingConfig
}

// SourceConfig holds settings for the database the raw tables are read from.
type SourceConfig struct {
	// URL is the PostgreSQL connection string of the raw data (required)
	URL string `env:"SOURCE_DATABASE_URL" envAlt:"SOURCE_DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 2)
	MaxConns int `env:"SOURCE_DB_MAX_CONNS" default:"2"`

	// Schema is the schema holding the cademycode_* tables (default: public)
	Schema string `env:"SOURCE_DB_SCHEMA" default:"public"`
}

// DestinationConfig holds settings for the database cleaned tables are written to.
type DestinationConfig struct {
	// URL is the PostgreSQL connection string of the analytics store (required)
	// Supports both DEST_DATABASE_URL and DATABASE_URL env vars for compatibility
	URL string `env:"DEST_DATABASE_URL" envAlt:"DATABASE_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DEST_DB_MAX_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DEST_DB_MAX_CONN_LIFETIME" default:"1h"`

	// Schema is the schema cleaned tables are replaced in (default: public)
	Schema string `env:"DEST_DB_SCHEMA" default:"public"`

	// RecordHistory stores a row per run in pipeline_runs (default: true)
	RecordHistory bool `env:"DEST_RECORD_HISTORY" default:"true"`
}

// PipelineConfig holds run settings.
type PipelineConfig struct {
	// Timeout is the maximum duration of one run (default: 10m)
	Timeout time.Duration `env:"PIPELINE_TIMEOUT" default:"10m"`

	// ExportPath writes cleaned tables to an .xlsx workbook after each run when set
	ExportPath string `env:"PIPELINE_EXPORT_PATH"`
}

// ServerConfig holds HTTP status server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
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
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
