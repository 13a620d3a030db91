package config

import (
	"strings"
	"testing"
	"time"
)

func mapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func validConfig() *Config {
	return &Config{
		CRM:     CRMConfig{BaseURL: "https://crm.example.com"},
		Sync:    SyncConfig{SaveKeyPolicy: "passthrough", SniffSampleSize: 1024},
		Ledger:  LedgerConfig{Driver: "none", MaxConns: 4},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{
		"CRM_BASE_URL": "https://crm.example.com",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.CRM.InsecureSkipVerify {
		t.Error("CRM.InsecureSkipVerify = true, want false")
	}
	if cfg.CRM.RequestTimeout != 0 {
		t.Errorf("CRM.RequestTimeout = %v, want 0", cfg.CRM.RequestTimeout)
	}
	if cfg.Sync.SaveKeyPolicy != "passthrough" {
		t.Errorf("Sync.SaveKeyPolicy = %q, want %q", cfg.Sync.SaveKeyPolicy, "passthrough")
	}
	if cfg.Sync.SniffSampleSize != 1024 {
		t.Errorf("Sync.SniffSampleSize = %d, want %d", cfg.Sync.SniffSampleSize, 1024)
	}
	if cfg.Sync.StrictSchema {
		t.Error("Sync.StrictSchema = true, want false")
	}
	if cfg.Ledger.Driver != "none" {
		t.Errorf("Ledger.Driver = %q, want %q", cfg.Ledger.Driver, "none")
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{
		"CRM_BASE_URL":         "https://crm.example.com",
		"CRM_REQUEST_TIMEOUT":  "1m30s",
		"SYNC_STRICT_SCHEMA":   "true",
		"SYNC_SAVE_KEY_POLICY": "translate",
		"LEDGER_DRIVER":        "sqlite",
		"LEDGER_DSN":           "/tmp/ledger.db",
		"LOG_LEVEL":            "debug",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.CRM.RequestTimeout != 90*time.Second {
		t.Errorf("CRM.RequestTimeout = %v, want %v", cfg.CRM.RequestTimeout, 90*time.Second)
	}
	if !cfg.Sync.StrictSchema {
		t.Error("Sync.StrictSchema = false, want true")
	}
	if cfg.Sync.SaveKeyPolicy != "translate" {
		t.Errorf("Sync.SaveKeyPolicy = %q, want %q", cfg.Sync.SaveKeyPolicy, "translate")
	}
	if cfg.Ledger.DSN != "/tmp/ledger.db" {
		t.Errorf("Ledger.DSN = %q, want %q", cfg.Ledger.DSN, "/tmp/ledger.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	cfg, err := LoadFrom(mapLookup(map[string]string{
		"SALSA_BASE_URL": "https://alt.example.com",
		"DATABASE_URL":   "postgres://localhost/ledger",
	}))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if cfg.CRM.BaseURL != "https://alt.example.com" {
		t.Errorf("CRM.BaseURL = %q, want %q", cfg.CRM.BaseURL, "https://alt.example.com")
	}
	if cfg.Ledger.DSN != "postgres://localhost/ledger" {
		t.Errorf("Ledger.DSN = %q, want %q", cfg.Ledger.DSN, "postgres://localhost/ledger")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	_, err := LoadFrom(mapLookup(map[string]string{}))
	if err == nil {
		t.Fatal("LoadFrom() expected error for missing CRM_BASE_URL")
	}
	if !strings.Contains(err.Error(), "CRM_BASE_URL") {
		t.Errorf("error should mention CRM_BASE_URL: %v", err)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	_, err := LoadFrom(mapLookup(map[string]string{
		"CRM_BASE_URL":       "https://crm.example.com",
		"SYNC_STRICT_SCHEMA": "sometimes",
	}))
	if err == nil {
		t.Fatal("LoadFrom() expected error for invalid boolean")
	}
	if !strings.Contains(err.Error(), "SYNC_STRICT_SCHEMA") {
		t.Errorf("error should mention SYNC_STRICT_SCHEMA: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"relative base url", func(c *Config) { c.CRM.BaseURL = "crm.example.com" }, "CRM_BASE_URL"},
		{"ftp base url", func(c *Config) { c.CRM.BaseURL = "ftp://crm.example.com" }, "CRM_BASE_URL"},
		{"negative timeout", func(c *Config) { c.CRM.RequestTimeout = -time.Second }, "CRM_REQUEST_TIMEOUT"},
		{"bad key policy", func(c *Config) { c.Sync.SaveKeyPolicy = "rename" }, "SYNC_SAVE_KEY_POLICY"},
		{"zero sample", func(c *Config) { c.Sync.SniffSampleSize = 0 }, "SYNC_SNIFF_SAMPLE_SIZE"},
		{"bad driver", func(c *Config) { c.Ledger.Driver = "mongo" }, "LEDGER_DRIVER"},
		{"sqlite without dsn", func(c *Config) { c.Ledger.Driver = "sqlite" }, "LEDGER_DSN"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.CRM.Password = "hunter2"
	cfg.Ledger.DSN = "postgres://secret:pw@host/db"

	str := cfg.String()
	if strings.Contains(str, "hunter2") || strings.Contains(str, "secret") {
		t.Errorf("String() should mask secrets: %s", str)
	}
	if !strings.Contains(str, "MASKED") {
		t.Error("String() should contain MASKED placeholder")
	}
}
