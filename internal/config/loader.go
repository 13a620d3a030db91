package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from the process environment.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup instead of the process
// environment. Every missing required variable is reported, not just the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	var missing []string
	if err := loadStruct(reflect.ValueOf(cfg).Elem(), lookup, &missing); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config load: required environment variables not set: %s",
			strings.Join(missing, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value, lookup LookupFunc, missing *[]string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, lookup, missing); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := get(lookup, envName)
		if value == "" {
			if alt := field.Tag.Get("envAlt"); alt != "" {
				value = get(lookup, alt)
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				*missing = append(*missing, envName)
				continue
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

func get(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
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

	// CRM
	if c.CRM.BaseURL == "" {
		errs = append(errs, "CRM_BASE_URL is required")
	} else if u, err := url.Parse(c.CRM.BaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("CRM_BASE_URL (%q) must be an absolute http(s) URL", c.CRM.BaseURL))
	}
	if c.CRM.RequestTimeout < 0 {
		errs = append(errs, "CRM_REQUEST_TIMEOUT must be non-negative")
	}

	// Sync
	switch strings.ToLower(c.Sync.SaveKeyPolicy) {
	case "passthrough", "translate":
	default:
		errs = append(errs, fmt.Sprintf("SYNC_SAVE_KEY_POLICY (%q) must be one of: passthrough, translate",
			c.Sync.SaveKeyPolicy))
	}
	if c.Sync.SniffSampleSize <= 0 {
		errs = append(errs, "SYNC_SNIFF_SAMPLE_SIZE must be positive")
	}

	// Ledger
	switch strings.ToLower(c.Ledger.Driver) {
	case "none":
	case "sqlite", "postgres":
		if c.Ledger.DSN == "" {
			errs = append(errs, fmt.Sprintf("LEDGER_DSN is required when LEDGER_DRIVER is %q", c.Ledger.Driver))
		}
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_DRIVER (%q) must be one of: none, sqlite, postgres", c.Ledger.Driver))
	}
	if c.Ledger.MaxConns <= 0 {
		errs = append(errs, "LEDGER_MAX_CONNS must be positive")
	}

	// Logging
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

// String returns a safe string representation of the config for logging.
// The password and ledger DSN are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "CRM: {BaseURL: %q, Email: %q, Password: %s, InsecureSkipVerify: %v, RequestTimeout: %s}, ",
		c.CRM.BaseURL, c.CRM.Email, mask(c.CRM.Password), c.CRM.InsecureSkipVerify, c.CRM.RequestTimeout)
	fmt.Fprintf(&b, "Sync: {StrictSchema: %v, SaveKeyPolicy: %q, SniffSampleSize: %d}, ",
		c.Sync.StrictSchema, c.Sync.SaveKeyPolicy, c.Sync.SniffSampleSize)
	fmt.Fprintf(&b, "Ledger: {Driver: %q, DSN: %s}, ", c.Ledger.Driver, mask(c.Ledger.DSN))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return `""`
	}
	return "[MASKED]"
}
