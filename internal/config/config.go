// Package config provides centralized configuration management for crmsync.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables; command-line
// flags override individual values after loading.
type Config struct {
	CRM     CRMConfig
	Sync    SyncConfig
	Ledger  LedgerConfig
	Logging LoggingConfig
}

// CRMConfig holds remote API connection settings.
type CRMConfig struct {
	// BaseURL is the scheme and host of the remote API, e.g. https://org.example.com (required)
	BaseURL string `env:"CRM_BASE_URL" envAlt:"SALSA_BASE_URL" required:"true"`

	// OrganizationKey is sent with authenticate when set
	OrganizationKey string `env:"CRM_ORGANIZATION_KEY"`

	// Email is the login email; the --email flag overrides it
	Email string `env:"CRM_EMAIL"`

	// Password is the login password. When empty the user is prompted.
	Password string `env:"CRM_PASSWORD"`

	// InsecureSkipVerify disables TLS certificate verification (default: false)
	InsecureSkipVerify bool `env:"CRM_INSECURE_SKIP_VERIFY" default:"false"`

	// RequestTimeout bounds a single remote call; 0 means no timeout (default: 0s)
	RequestTimeout time.Duration `env:"CRM_REQUEST_TIMEOUT" default:"0s"`

	// UserAgent is sent on every request (default: crmsync)
	UserAgent string `env:"CRM_USER_AGENT" default:"crmsync"`
}

// SyncConfig holds batch processing settings.
type SyncConfig struct {
	// StrictSchema turns unknown input columns into a fatal error (default: false)
	StrictSchema bool `env:"SYNC_STRICT_SCHEMA" default:"false"`

	// SaveKeyPolicy is passthrough or translate (default: passthrough)
	SaveKeyPolicy string `env:"SYNC_SAVE_KEY_POLICY" default:"passthrough"`

	// SniffSampleSize is how many bytes are read to detect the CSV dialect (default: 1024)
	SniffSampleSize int `env:"SYNC_SNIFF_SAMPLE_SIZE" default:"1024"`

	// HTMLReport writes an HTML run summary next to the output file (default: false)
	HTMLReport bool `env:"SYNC_HTML_REPORT" default:"false"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	// Driver is none, sqlite or postgres (default: none)
	Driver string `env:"LEDGER_DRIVER" default:"none"`

	// DSN is a sqlite file path or a PostgreSQL connection string
	// Supports both LEDGER_DSN and DATABASE_URL env vars
	DSN string `env:"LEDGER_DSN" envAlt:"DATABASE_URL"`

	// MaxConns is the maximum number of pooled connections for postgres (default: 4)
	MaxConns int `env:"LEDGER_MAX_CONNS" default:"4"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
