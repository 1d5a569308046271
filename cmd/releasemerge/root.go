package main

import (
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/releasemerge/internal/audit"
	"github.com/JonMunkholm/releasemerge/internal/component"
	"github.com/JonMunkholm/releasemerge/internal/config"
	"github.com/JonMunkholm/releasemerge/internal/core"
	"github.com/JonMunkholm/releasemerge/internal/database"
	"github.com/JonMunkholm/releasemerge/internal/logging"
	"github.com/JonMunkholm/releasemerge/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "releasemerge",
	Short: "Merge RF2 release packages",
	Long: `Merge RF2 release packages.

apply-delta folds a delta archive into a full release package and writes the
new package. merge-fix reconciles a fix delta with the current delta.

Settings come from the environment (and a .env file when present); a release
profile overlays the locale and naming settings.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupApp,
}

var (
	profilePath string
	metricsFile string
)

// app holds what setupApp builds for the subcommands.
var app struct {
	cfg     *config.Config
	svc     *core.Service
	metrics *metrics.Metrics
	pool    *pgxpool.Pool
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "Release profile YAML (overrides RELEASE_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write run metrics to this textfile (overrides METRICS_TEXTFILE)")
}

func setupApp(cmd *cobra.Command, _ []string) error {
	// Overload so the .env file wins over stale shell exports
	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if profilePath != "" {
		if err := cfg.ApplyProfile(profilePath); err != nil {
			return fmt.Errorf("config load: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
	}
	if metricsFile != "" {
		cfg.Metrics.Textfile = metricsFile
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	deps := core.Deps{
		Owners:  component.NoOwners{},
		Metrics: metrics.New(),
	}
	var sinks audit.MultiSink
	if cfg.Logging.Audit {
		sinks = append(sinks, audit.NewLogSink(slog.Default()))
	}

	if cfg.Database.Enabled() {
		ctx := cmd.Context()
		pool, err := database.Connect(ctx, cfg.Database.URL, database.PoolOptions{
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		})
		if err != nil {
			return err
		}
		app.pool = pool
		slog.Info("connected to database", "name", database.Name(cfg.Database.URL))

		if cfg.Database.EnsureSchema {
			if err := database.EnsureSchema(ctx, pool); err != nil {
				return err
			}
		}
		deps.Source = component.NewPostgresSource(pool)
		deps.Owners = component.NewPostgresOwners(pool)
		sinks = append(sinks, audit.NewPostgresSink(pool))
	}

	switch len(sinks) {
	case 0:
	case 1:
		deps.Sink = sinks[0]
	default:
		deps.Sink = sinks
	}

	svc, err := core.NewService(cfg, deps)
	if err != nil {
		return err
	}
	app.cfg = cfg
	app.svc = svc
	app.metrics = deps.Metrics
	return nil
}

// closeApp flushes metrics and releases the database pool.
func closeApp() {
	if app.metrics != nil && app.cfg != nil && app.cfg.Metrics.Textfile != "" {
		if err := app.metrics.WriteTextfile(app.cfg.Metrics.Textfile); err != nil {
			slog.Warn("failed to write metrics textfile", "path", app.cfg.Metrics.Textfile, "error", err)
		}
	}
	if app.pool != nil {
		app.pool.Close()
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
