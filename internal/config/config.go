package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable, e.g. IDEABANK_SERVER_ADDR.
const EnvPrefix = "IDEABANK"

// Config represents the complete application configuration.
type Config struct {
	Server  ServerConfig  `envconfig:"SERVER"`
	Logging LoggingConfig `envconfig:"LOG"`
	Fetch   FetchConfig   `envconfig:"FETCH"`
	Report  ReportConfig  `envconfig:"REPORT"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Addr           string        `envconfig:"ADDR" default:":8080"`
	BodyLimit      int           `envconfig:"BODY_LIMIT" default:"33554432"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	AllowedOrigins string        `envconfig:"ALLOWED_ORIGINS" default:"*"`
	StaticDir      string        `envconfig:"STATIC_DIR"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Format      string `envconfig:"FORMAT" default:"json"`
	Development bool   `envconfig:"DEVELOPMENT" default:"false"`
}

// FetchConfig controls how exports are loaded.
type FetchConfig struct {
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"30s"`
	MaxBytes int64         `envconfig:"MAX_BYTES" default:"33554432"`
	Sheet    string        `envconfig:"SHEET"`
	// AllowedHosts lists the hosts the API may fetch exports from, e.g.
	// "docs.example.com" or "10.0.0.5:8080". Empty disables URL loading.
	AllowedHosts []string `envconfig:"ALLOWED_HOSTS"`
}

// ReportConfig holds defaults for summaries and initial filters.
type ReportConfig struct {
	TopN             int      `envconfig:"TOP_N" default:"10"`
	ExcludedStatuses []string `envconfig:"EXCLUDED_STATUSES"`
}

// Load reads an optional .env file, then the environment, and validates the
// result. Variables already set in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, fmt.Errorf("body limit must be positive, got %d", c.Server.BodyLimit))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.Fetch.Timeout))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch max bytes must be positive, got %d", c.Fetch.MaxBytes))
	}
	if c.Report.TopN < 0 {
		errs = append(errs, fmt.Errorf("top N must not be negative, got %d", c.Report.TopN))
	}

	return errors.Join(errs...)
}
