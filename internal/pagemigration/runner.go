package pagemigration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adintel/adintel/internal/metrics"
	"github.com/adintel/adintel/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrLocked is returned when another process holds the migration lock.
var ErrLocked = errors.New("another migration is in progress")

// AcquireLock takes the migration lock without waiting. It returns ErrLocked
// when another session holds it.
func AcquireLock(ctx context.Context, l Locker, lockID int64) (release func(), err error) {
	acquired, release, err := l.TryAdvisoryLock(ctx, lockID)
	if err != nil {
		return nil, fmt.Errorf("take migration lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("%w (advisory lock %d is held)", ErrLocked, lockID)
	}
	return release, nil
}

// Options controls a migration run.
type Options struct {
	DryRun      bool
	Force       bool
	SkipCleanup bool
	LockID      int64
	BackupDir   string
	SchemaFile  string
}

// RunReport describes one migration run.
type RunReport struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	DryRun     bool           `json:"dry_run"`
	Forced     bool           `json:"forced,omitempty"`
	Decision   Decision       `json:"decision"`
	Backup     *BackupResult  `json:"backup,omitempty"`
	Schema     *SchemaResult  `json:"schema,omitempty"`
	Copy       *CopyResult    `json:"copy,omitempty"`
	Cleanup    *CleanupResult `json:"cleanup,omitempty"`
}

// Ran reports whether the migration steps were executed.
func (r *RunReport) Ran() bool {
	return r.Copy != nil
}

// markerDetails is stored in data_migrations.details.
type markerDetails struct {
	RunID      string `json:"run_id"`
	BackupPath string `json:"backup_path"`
	BackupURL  string `json:"backup_url,omitempty"`
	Migrated   int    `json:"migrated"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
	Cleanup    bool   `json:"cleanup"`
}

// Runner orchestrates Guard, Backup, SchemaApplier, Copier and Cleanup.
type Runner struct {
	store   Store
	opts    Options
	guard   *Guard
	backup  *Backup
	schema  *SchemaApplier
	copier  *Copier
	cleanup *Cleanup
	metrics *metrics.MigrationMetrics
	logger  zerolog.Logger
}

// NewRunner wires the migration components. uploader and m may be nil.
func NewRunner(store Store, opts Options, uploader SnapshotUploader, m *metrics.MigrationMetrics, logger zerolog.Logger) (*Runner, error) {
	schema := NewSchemaApplier(store, logger)
	if opts.SchemaFile != "" {
		if err := schema.LoadSchemaFile(opts.SchemaFile); err != nil {
			return nil, err
		}
	}
	if opts.BackupDir == "" {
		opts.BackupDir = "."
	}

	return &Runner{
		store:   store,
		opts:    opts,
		guard:   NewGuard(store, logger),
		backup:  NewBackup(store, opts.BackupDir, uploader, logger),
		schema:  schema,
		copier:  NewCopier(store, logger),
		cleanup: NewCleanup(store, logger),
		metrics: m,
		logger:  logger.With().Str("component", "runner").Logger(),
	}, nil
}

// Run executes the migration. Dry runs take no lock and change nothing.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		DryRun:    r.opts.DryRun,
	}
	log := r.logger.With().Str("run_id", report.RunID).Logger()
	if r.opts.DryRun {
		log.Info().Msg("dry run: no changes will be made")
	}

	err := r.run(ctx, report, log)
	report.FinishedAt = time.Now()
	r.metrics.RecordRun(err == nil, report.FinishedAt)
	return report, err
}

func (r *Runner) run(ctx context.Context, report *RunReport, log zerolog.Logger) error {
	if !r.opts.DryRun {
		release, err := AcquireLock(ctx, r.store, r.opts.LockID)
		if err != nil {
			return err
		}
		defer release()
		log.Debug().Int64("lock_id", r.opts.LockID).Msg("migration lock acquired")
	}

	err := r.step("guard", func() error {
		d, err := r.guard.Evaluate(ctx)
		report.Decision = d
		return err
	})
	if err != nil {
		return err
	}
	if !report.Decision.Needed {
		if !r.opts.Force {
			log.Info().Str("reason", report.Decision.Reason).Msg("migration not needed")
			return nil
		}
		report.Forced = true
		log.Warn().Str("reason", report.Decision.Reason).Msg("migration not needed, running anyway (--force)")
	}

	err = r.step("backup", func() error {
		res, err := r.backup.Run(ctx, report.RunID, r.opts.DryRun)
		if err == nil {
			report.Backup = &res
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	err = r.step("schema", func() error {
		res, err := r.schema.Apply(ctx, r.opts.DryRun)
		report.Schema = &res
		return err
	})
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}

	err = r.step("copy", func() error {
		res, err := r.copier.Migrate(ctx, r.opts.DryRun)
		report.Copy = &res
		r.metrics.RecordPages(res.Migrated, res.Skipped, res.Total)
		return err
	})
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	if r.opts.DryRun {
		log.Info().
			Int("would_migrate", report.Copy.Migrated).
			Int("would_skip", report.Copy.Skipped).
			Int("total", report.Copy.Total).
			Msg("[dry-run] skipping confirmation, cleanup and marker")
		return nil
	}

	err = r.step("confirm", func() error {
		return r.copier.Confirm(ctx, report.Copy.Candidates)
	})
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}

	if r.opts.SkipCleanup {
		log.Info().Msg("skipping legacy column cleanup (--skip-cleanup)")
		report.Cleanup = &CleanupResult{Skipped: true}
	} else {
		_ = r.step("cleanup", func() error {
			res := r.cleanup.Run(ctx, false)
			report.Cleanup = &res
			return nil
		})
	}

	err = r.step("marker", func() error {
		return r.recordMarker(ctx, report)
	})
	if err != nil {
		return fmt.Errorf("record marker: %w", err)
	}

	log.Info().
		Int("migrated", report.Copy.Migrated).
		Int("skipped", report.Copy.Skipped).
		Int("total", report.Copy.Total).
		Msg("migration completed")
	return nil
}

func (r *Runner) step(name string, fn func() error) error {
	start := time.Now()
	r.logger.Info().Str("step", name).Msg("starting step")
	err := fn()
	r.metrics.ObserveStep(name, time.Since(start))
	if err != nil {
		r.logger.Error().Err(err).Str("step", name).Msg("step failed")
	}
	return err
}

func (r *Runner) recordMarker(ctx context.Context, report *RunReport) error {
	details := markerDetails{
		RunID:    report.RunID,
		Migrated: report.Copy.Migrated,
		Skipped:  report.Copy.Skipped,
		Total:    report.Copy.Total,
		Cleanup:  report.Cleanup != nil && !report.Cleanup.Skipped && len(report.Cleanup.Failed) == 0,
	}
	if report.Backup != nil {
		details.BackupPath = report.Backup.Path
		details.BackupURL = report.Backup.RemoteURL
	}
	marker, err := models.NewDataMigration(MarkerName, details)
	if err != nil {
		return err
	}
	return r.store.RecordDataMigration(ctx, marker)
}
