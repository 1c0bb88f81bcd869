// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/caarlos0/env/v11"
)

// Supported DATA_BACKEND values.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

var validBackends = []string{BackendMemory, BackendSQLite, BackendPostgres}

type Config struct {
	// HTTP Server
	Port               string        `env:"PORT" envDefault:"8081"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	TrustedProxies     []string      `env:"TRUSTED_PROXIES" envSeparator:","`

	// Backend selection
	DataBackend    string        `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath   string        `env:"SQLITE_DB_PATH" envDefault:"./data/simplemoney.db"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"5s"`

	// AMQP; an empty URL disables event publishing
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"simplemoney"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"ledger_events"`

	// Reconciler
	ReconcileInterval    time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileConcurrency int           `env:"RECONCILE_CONCURRENCY" envDefault:"4"`

	Currency string `env:"CURRENCY" envDefault:"BRL"`

	// Tracing
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`

	// Google Sheets export (worker only)
	GoogleSpreadsheetID        string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName            string `env:"GOOGLE_SHEET_NAME" envDefault:"Transações"`
	GoogleServiceAccountJSON   string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile   string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleApplicationCredsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config with defaults applied.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	return cfg, nil
}

// SheetsEnabled reports whether the worker should export to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return strings.TrimSpace(c.GoogleSpreadsheetID) != ""
}

// SheetsCredentialsFile picks the service account file, preferring
// GOOGLE_SERVICE_ACCOUNT_FILE over GOOGLE_APPLICATION_CREDENTIALS.
func (c *Config) SheetsCredentialsFile() string {
	if f := strings.TrimSpace(c.GoogleServiceAccountFile); f != "" {
		return f
	}
	return strings.TrimSpace(c.GoogleApplicationCredsFile)
}

// TracingEnabled reports whether an OTLP exporter should be installed.
func (c *Config) TracingEnabled() bool {
	return c.OTelEnabled && strings.TrimSpace(c.OTelEndpoint) != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.BackendTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be positive", c.BackendTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}
	if c.ReconcileConcurrency < 1 || c.ReconcileConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid reconcile concurrency %d: must be between 1 and 64", c.ReconcileConcurrency))
	}

	if money.GetCurrency(c.Currency) == nil {
		errors = append(errors, fmt.Sprintf("unknown currency '%s'", c.Currency))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: cannot be negative", c.CacheTTL))
	}

	if c.OTelEndpoint != "" {
		if u, err := url.Parse(c.OTelEndpoint); err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid OTEL endpoint '%s': must be an absolute URL", c.OTelEndpoint))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
