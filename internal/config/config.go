// Package config provides centralized configuration management for the tool.
// It loads configuration from environment variables with sensible defaults,
// optionally overlays a YAML release profile, and validates all settings
// before a run starts so misconfiguration fails fast.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Release  ReleaseConfig
	Merge    MergeConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ReleaseConfig describes the naming conventions of the release packages.
// A release profile file may override every field.
type ReleaseConfig struct {
	// Profile is a YAML file applied over the environment values
	Profile string `env:"RELEASE_PROFILE" yaml:"-"`

	// ModuleToken terminates the language modifier in file names (default: INT)
	ModuleToken string `env:"RELEASE_MODULE_TOKEN" default:"INT" yaml:"module_token"`

	// DesignatedLocale is the language modifier whose language refsets are
	// always merged (default: -en_)
	DesignatedLocale string `env:"RELEASE_DESIGNATED_LOCALE" default:"-en_" yaml:"designated_locale"`

	// SecondaryLocaleMarker is assumed for locale-bearing files whose name
	// lacks the module token (default: -fr_)
	SecondaryLocaleMarker string `env:"RELEASE_SECONDARY_LOCALE" default:"-fr_" yaml:"secondary_locale_marker"`

	// PrimaryLocaleShortKey is looked up in the primary-locale delta for the
	// regional override
	PrimaryLocaleShortKey string `env:"RELEASE_PRIMARY_LOCALE_KEY" yaml:"primary_locale_short_key"`

	// RegionalShortKey is the regional language refset that keeps its own
	// rows for ids changed in the primary locale; empty disables the override
	RegionalShortKey string `env:"RELEASE_REGIONAL_KEY" yaml:"regional_short_key"`
}

// MergeConfig holds defaults for the two merge operations.
type MergeConfig struct {
	// PackageDir is the output package directory; derived from the base
	// archive name when empty
	PackageDir string `env:"MERGE_PACKAGE_DIR"`

	// PublishedBefore is the reversion cutoff for merge-fix (YYYYMMDD)
	PublishedBefore string `env:"MERGE_PUBLISHED_BEFORE"`

	// Timeout bounds a whole run; 0 disables it (default: 0s)
	Timeout time.Duration `env:"MERGE_TIMEOUT" default:"0s"`
}

// DatabaseConfig holds the optional database connection settings. Without a
// URL the tool runs on archives alone.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema creates the collaborator tables on startup (default: false)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"false"`
}

// Enabled reports whether a database is configured.
func (c *DatabaseConfig) Enabled() bool { return c.URL != "" }

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// Audit mirrors audit entries into the log (default: true)
	Audit bool `env:"LOG_AUDIT" default:"true"`
}

// MetricsConfig holds metrics output settings.
type MetricsConfig struct {
	// Textfile is where run metrics are written for the node exporter;
	// empty disables metrics output
	Textfile string `env:"METRICS_TEXTFILE"`
}
