package config

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from environment variables layered over an
// optional config file (YAML, TOML, JSON or .env, by extension). Keys in the
// file are the environment variable names, case-insensitive:
//
//	source_database_url: postgres://localhost/cademycode
//	log_level: debug
//
// Environment variables always win over the file.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config load: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := loadStruct(v, reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// lookup resolves a setting by its environment variable name.
func lookup(v *viper.Viper, name string) string {
	return strings.TrimSpace(v.GetString(strings.ToLower(name)))
}

// loadStruct recursively populates struct fields from the viper lookup.
func loadStruct(v *viper.Viper, rv reflect.Value) error {
	t := rv.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := rv.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(v, fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary name, then alternate
		value := lookup(v, envName)
		if value == "" && envAlt != "" {
			value = lookup(v, envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Source.URL == "" {
		errs = append(errs, "SOURCE_DATABASE_URL is required")
	} else if !isPostgresURL(c.Source.URL) {
		errs = append(errs, "SOURCE_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	if c.Destination.URL == "" {
		errs = append(errs, "DEST_DATABASE_URL is required")
	} else if !isPostgresURL(c.Destination.URL) {
		errs = append(errs, "DEST_DATABASE_URL must be a postgres:// or postgresql:// URL")
	}
	if c.Source.MaxConns <= 0 {
		errs = append(errs, "SOURCE_DB_MAX_CONNS must be positive")
	}
	if c.Destination.MaxConns <= 0 {
		errs = append(errs, "DEST_DB_MAX_CONNS must be positive")
	}
	if c.Source.Schema == "" || c.Destination.Schema == "" {
		errs = append(errs, "SOURCE_DB_SCHEMA and DEST_DB_SCHEMA must not be empty")
	}

	// Pipeline validation
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, "PIPELINE_TIMEOUT must be positive")
	}
	if c.Pipeline.ExportPath != "" && !strings.HasSuffix(strings.ToLower(c.Pipeline.ExportPath), ".xlsx") {
		errs = append(errs, fmt.Sprintf("PIPELINE_EXPORT_PATH (%q) must end in .xlsx", c.Pipeline.ExportPath))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isPostgresURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "postgres" || u.Scheme == "postgresql"
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Source: {URL: [MASKED], MaxConns: %d, Schema: %q}, ",
		c.Source.MaxConns, c.Source.Schema))
	b.WriteString(fmt.Sprintf("Destination: {URL: [MASKED], MaxConns: %d, Schema: %q, RecordHistory: %v}, ",
		c.Destination.MaxConns, c.Destination.Schema, c.Destination.RecordHistory))
	b.WriteString(fmt.Sprintf("Pipeline: {Timeout: %s, ExportPath: %q}, ",
		c.Pipeline.Timeout, c.Pipeline.ExportPath))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
