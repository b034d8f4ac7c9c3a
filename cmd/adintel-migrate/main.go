// Package main is the entrypoint for the adintel database migration CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/adintel/adintel/internal/config"
	"github.com/adintel/adintel/internal/db"
	"github.com/adintel/adintel/internal/metrics"
	"github.com/adintel/adintel/internal/pagemigration"
	"github.com/adintel/adintel/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var _ pagemigration.Store = (*db.DB)(nil)

func main() {
	// An interrupted run releases its lock and rolls back the open transaction.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand. Empty values leave the
// configuration file and environment in charge.
type globalFlags struct {
	configPath  string
	dbURL       string
	backupDir   string
	schemaFile  string
	metricsFile string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	var (
		g           globalFlags
		dryRun      bool
		rollback    bool
		force       bool
		skipCleanup bool
	)

	rootCmd := &cobra.Command{
		Use:   "adintel-migrate",
		Short: "Move brand page URLs into the brand_pages table",
		Long: `adintel-migrate moves every brand's legacy page_url into the brand_pages
table, adds global scraper settings with per-brand overrides, and drops the
legacy columns.

The migration is idempotent. A snapshot of the brands table is written
before anything is changed. Use --dry-run to see what would happen.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rollback {
				fmt.Fprint(cmd.OutOrStdout(), pagemigration.RollbackInstructions)
				return pagemigration.ErrRollbackNotAutomated
			}
			return runMigration(cmd, g, pagemigration.Options{
				DryRun:      dryRun,
				Force:       force,
				SkipCleanup: skipCleanup,
			})
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&g.dbURL, "db", "", "Database URL (or set DATABASE_URL env var)")
	pf.StringVar(&g.backupDir, "backup-dir", "", "Directory for backup snapshots (default: working directory)")
	pf.StringVar(&g.schemaFile, "schema-file", "", "DDL script to apply instead of the built-in one")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile when done")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format (console or json)")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without changing anything")
	rootCmd.Flags().BoolVar(&rollback, "rollback", false, "Print the manual rollback procedure and exit")
	rootCmd.Flags().BoolVar(&force, "force", false, "Run every step even if the migration is not needed")
	rootCmd.Flags().BoolVar(&skipCleanup, "skip-cleanup", false, "Keep the legacy brands columns after copying")

	rootCmd.AddCommand(
		newVersionCmd(),
		newVerifyCmd(&g),
		newStatusCmd(&g),
		newRestoreCmd(&g),
		newBaseCmd(&g),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "adintel-migrate %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
		},
	}
}

// env is the runtime shared by the database-backed commands.
type env struct {
	cfg      config.MigrateConfig
	logger   zerolog.Logger
	db       *db.DB
	registry *prometheus.Registry
	metrics  *metrics.MigrationMetrics
	ctx      context.Context
	cancel   context.CancelFunc
}

// loadConfig resolves defaults, the config file, the environment and flags.
func loadConfig(g globalFlags) (config.MigrateConfig, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.dbURL != "" {
		cfg.DatabaseURL = g.dbURL
	}
	if g.backupDir != "" {
		cfg.BackupDir = g.backupDir
	}
	if g.schemaFile != "" {
		cfg.SchemaFile = g.schemaFile
	}
	if g.metricsFile != "" {
		cfg.MetricsFile = g.metricsFile
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func setup(parent context.Context, g globalFlags) (*env, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log)

	e := &env{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	if cfg.Timeout > 0 {
		e.ctx, e.cancel = context.WithTimeout(parent, cfg.Timeout)
	} else {
		e.ctx, e.cancel = context.WithCancel(parent)
	}

	e.metrics, err = metrics.NewMigrationMetrics(e.registry)
	if err != nil {
		e.cancel()
		return nil, err
	}

	dbCfg := db.DefaultConfig(cfg.DatabaseURL)
	dbCfg.MaxConns = 5
	dbCfg.MinConns = 1
	e.db, err = db.New(e.ctx, dbCfg, logger)
	if err != nil {
		e.cancel()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	return e, nil
}

func (e *env) close() {
	if e.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(e.cfg.MetricsFile, e.registry); err != nil {
			e.logger.Warn().Err(err).Str("path", e.cfg.MetricsFile).Msg("failed to write metrics")
		}
	}
	e.db.Close()
	e.cancel()
}

// snapshotUploader returns nil unless off-site copies are configured.
func (e *env) snapshotUploader() (pagemigration.SnapshotUploader, error) {
	s3cfg := e.cfg.BackupS3
	if !s3cfg.Enabled() {
		return nil, nil
	}
	u, err := snapshot.NewS3Uploader(e.ctx, snapshot.S3Options{
		Bucket:          s3cfg.Bucket,
		Prefix:          s3cfg.Prefix,
		Region:          s3cfg.Region,
		Endpoint:        s3cfg.Endpoint,
		AccessKeyID:     s3cfg.AccessKeyID,
		SecretAccessKey: s3cfg.SecretAccessKey,
		UseSSL:          s3cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func runMigration(cmd *cobra.Command, g globalFlags, opts pagemigration.Options) error {
	e, err := setup(cmd.Context(), g)
	if err != nil {
		return err
	}
	defer e.close()

	uploader, err := e.snapshotUploader()
	if err != nil {
		return err
	}

	opts.LockID = e.cfg.LockID
	opts.BackupDir = e.cfg.BackupDir
	opts.SchemaFile = e.cfg.SchemaFile
	opts.SkipCleanup = opts.SkipCleanup || e.cfg.SkipCleanup

	runner, err := pagemigration.NewRunner(e.db, opts, uploader, e.metrics, e.logger)
	if err != nil {
		return err
	}

	report, err := runner.Run(e.ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("migration failed")
		if !errors.Is(err, pagemigration.ErrLocked) {
			e.logger.Error().Msg("run 'adintel-migrate --rollback' for the recovery procedure")
		}
		return err
	}

	printRunReport(cmd.OutOrStdout(), report)
	return nil
}

func printRunReport(w io.Writer, r *pagemigration.RunReport) {
	prefix := ""
	if r.DryRun {
		prefix = "[dry-run] "
	}
	if !r.Ran() {
		fmt.Fprintf(w, "%sMigration not needed: %s\n", prefix, r.Decision.Reason)
		return
	}

	fmt.Fprintf(w, "%sMigration run %s\n", prefix, r.RunID)
	if r.Backup != nil {
		fmt.Fprintf(w, "  Backup:   %s (%d rows)\n", r.Backup.Path, r.Backup.RowCount)
		if r.Backup.RemoteURL != "" {
			fmt.Fprintf(w, "  Off-site: %s\n", r.Backup.RemoteURL)
		}
	}
	if r.Schema != nil {
		fmt.Fprintf(w, "  Schema:   %d statements from %s\n", r.Schema.Statements, r.Schema.Source)
	}
	fmt.Fprintf(w, "  Pages:    %d migrated, %d skipped, %d total\n", r.Copy.Migrated, r.Copy.Skipped, r.Copy.Total)
	if r.Cleanup != nil {
		switch {
		case r.Cleanup.Skipped:
			fmt.Fprintln(w, "  Cleanup:  skipped")
		case len(r.Cleanup.Failed) > 0:
			fmt.Fprintf(w, "  Cleanup:  failed for %v (legacy columns left in place)\n", r.Cleanup.Failed)
		default:
			fmt.Fprintf(w, "  Cleanup:  dropped %v\n", r.Cleanup.Dropped)
		}
	}
	fmt.Fprintf(w, "  Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
}
