package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/releasemerge/internal/rf2"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values, overlays the release profile named by
// RELEASE_PROFILE, and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if cfg.Release.Profile != "" {
		if err := cfg.ApplyProfile(cfg.Release.Profile); err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// ApplyProfile overlays the release profile at path onto c.Release. Keys
// absent from the profile keep their current values; unknown keys are an
// error.
func (c *Config) ApplyProfile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open release profile: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	release := c.Release
	if err := dec.Decode(&release); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse release profile %s: %w", path, err)
	}
	release.Profile = path
	c.Release = release
	return nil
}

// Codec returns the file name codec described by the release settings.
func (c *Config) Codec() rf2.FilenameCodec {
	return rf2.FilenameCodec{
		ModuleToken:           c.Release.ModuleToken,
		SecondaryLocaleMarker: c.Release.SecondaryLocaleMarker,
	}
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
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

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
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

	// Release validation
	if c.Release.ModuleToken == "" {
		errs = append(errs, "RELEASE_MODULE_TOKEN is required")
	}
	if c.Release.DesignatedLocale == "" {
		errs = append(errs, "RELEASE_DESIGNATED_LOCALE is required")
	}
	if c.Release.RegionalShortKey != "" && c.Release.PrimaryLocaleShortKey == "" {
		errs = append(errs, "RELEASE_PRIMARY_LOCALE_KEY is required when RELEASE_REGIONAL_KEY is set")
	}
	if c.Release.RegionalShortKey != "" && !rf2.IsLanguageRefsetKey(c.Release.RegionalShortKey) {
		errs = append(errs, fmt.Sprintf("RELEASE_REGIONAL_KEY (%q) must name a language refset", c.Release.RegionalShortKey))
	}

	// Merge validation
	if c.Merge.PublishedBefore != "" && !isEffectiveTime(c.Merge.PublishedBefore) {
		errs = append(errs, fmt.Sprintf("MERGE_PUBLISHED_BEFORE (%q) must be an 8-digit date", c.Merge.PublishedBefore))
	}
	if c.Merge.Timeout < 0 {
		errs = append(errs, "MERGE_TIMEOUT must be non-negative")
	}

	// Database validation
	if c.Database.Enabled() {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
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
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isEffectiveTime(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Release: {ModuleToken: %q, DesignatedLocale: %q, SecondaryLocale: %q, Profile: %q}, ",
		c.Release.ModuleToken, c.Release.DesignatedLocale, c.Release.SecondaryLocaleMarker, c.Release.Profile))
	b.WriteString(fmt.Sprintf("Merge: {PackageDir: %q, PublishedBefore: %q}, ",
		c.Merge.PackageDir, c.Merge.PublishedBefore))
	if c.Database.Enabled() {
		b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d}, ", c.Database.MaxConns))
	} else {
		b.WriteString("Database: {disabled}, ")
	}
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
