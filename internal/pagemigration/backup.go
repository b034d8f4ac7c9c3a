package pagemigration

import (
	"context"
	"fmt"
	"time"

	"github.com/adintel/adintel/internal/models"
	"github.com/adintel/adintel/internal/snapshot"
	"github.com/rs/zerolog"
)

// SnapshotUploader copies a local snapshot file off-site.
type SnapshotUploader interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
}

// BackupResult describes the snapshot taken before mutation.
type BackupResult struct {
	Path          string `json:"path"`
	RowCount      int    `json:"row_count"`
	LegacyColumns bool   `json:"legacy_columns"`
	RemoteURL     string `json:"remote_url,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
}

// Backup exports the brands table to a snapshot file.
type Backup struct {
	store    BackupStore
	dir      string
	uploader SnapshotUploader
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBackup creates a Backup writing into dir. uploader may be nil.
func NewBackup(store BackupStore, dir string, uploader SnapshotUploader, logger zerolog.Logger) *Backup {
	return &Backup{
		store:    store,
		dir:      dir,
		uploader: uploader,
		logger:   logger.With().Str("component", "backup").Logger(),
		now:      time.Now,
	}
}

// Run writes the snapshot and returns where it went. The file is on disk
// before Run returns. In dry-run mode nothing is written.
func (b *Backup) Run(ctx context.Context, runID string, dryRun bool) (BackupResult, error) {
	if dryRun {
		n, err := b.store.CountRows(ctx, tableBrands)
		if err != nil {
			return BackupResult{}, fmt.Errorf("count brands: %w", err)
		}
		planned := snapshot.New(tableBrands, runID, nil)
		planned.Timestamp = b.now().UTC()
		path := planned.Path(b.dir)
		b.logger.Info().Int64("rows", n).Str("path", path).Msg("[dry-run] would write backup snapshot")
		return BackupResult{Path: path, RowCount: int(n), DryRun: true}, nil
	}

	rows, err := b.store.ExportTable(ctx, tableBrands)
	if err != nil {
		return BackupResult{}, fmt.Errorf("export brands: %w", err)
	}

	legacy, err := b.hasLegacyColumns(ctx)
	if err != nil {
		return BackupResult{}, err
	}

	snap := snapshot.New(tableBrands, runID, rows)
	snap.Timestamp = b.now().UTC()
	snap.LegacyColumns = legacy
	path, err := snapshot.Write(b.dir, snap)
	if err != nil {
		return BackupResult{}, fmt.Errorf("write snapshot: %w", err)
	}

	result := BackupResult{Path: path, RowCount: snap.RowCount, LegacyColumns: legacy}
	b.logger.Info().Int("rows", snap.RowCount).Str("path", path).Msg("backup snapshot written")
	if !legacy {
		b.logger.Warn().Str("path", path).Msg("legacy columns already dropped; this snapshot cannot be used by restore")
	}

	if b.uploader != nil {
		remote, err := b.uploader.UploadFile(ctx, path)
		if err != nil {
			// The local snapshot is already durable.
			b.logger.Warn().Err(err).Str("path", path).Msg("off-site snapshot copy failed")
		} else {
			result.RemoteURL = remote
			b.logger.Info().Str("remote", remote).Msg("snapshot copied off-site")
		}
	}

	return result, nil
}

func (b *Backup) hasLegacyColumns(ctx context.Context) (bool, error) {
	for _, col := range models.LegacyColumns {
		ok, err := b.store.ColumnExists(ctx, tableBrands, col)
		if err != nil {
			return false, fmt.Errorf("check column %s: %w", col, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
