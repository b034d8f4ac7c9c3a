// Package snapshot reads and writes point-in-time JSON exports of a table.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FilePrefix is the file name prefix of snapshots taken before the page migration.
const FilePrefix = "backup_before_multi_pages_"

// ErrInvalidSnapshot is returned when a snapshot file fails validation.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is an immutable export of every row of one table. LegacyColumns
// is true when the table still had page_url, last_scraped_at and
// total_ads_scraped at export time; only such snapshots can restore the
// pre-migration data.
type Snapshot struct {
	Timestamp     time.Time         `json:"timestamp"`
	Table         string            `json:"table"`
	RowCount      int               `json:"row_count"`
	RunID         string            `json:"run_id,omitempty"`
	LegacyColumns bool              `json:"legacy_columns"`
	Data          []json.RawMessage `json:"data"`
}

// New creates a snapshot of rows taken now.
func New(table, runID string, rows []json.RawMessage) *Snapshot {
	if rows == nil {
		rows = make([]json.RawMessage, 0)
	}
	return &Snapshot{
		Timestamp: time.Now().UTC(),
		Table:     table,
		RowCount:  len(rows),
		RunID:     runID,
		Data:      rows,
	}
}

// Validate checks the snapshot is internally consistent.
func (s *Snapshot) Validate() error {
	if s.Table == "" {
		return fmt.Errorf("%w: table is empty", ErrInvalidSnapshot)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is missing", ErrInvalidSnapshot)
	}
	if s.RowCount != len(s.Data) {
		return fmt.Errorf("%w: row_count %d does not match %d data rows", ErrInvalidSnapshot, s.RowCount, len(s.Data))
	}
	return nil
}

// FileName returns the snapshot file name for t, e.g.
// backup_before_multi_pages_2024-03-01T12-00-00-000Z.json.
func FileName(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return FilePrefix + stamp + ".json"
}

// Path returns where the snapshot is written inside dir.
func (s *Snapshot) Path(dir string) string {
	return filepath.Join(dir, FileName(s.Timestamp))
}

// Write stores the snapshot in dir and returns its path. The file is fully
// flushed to disk before Write returns.
func Write(dir string, s *Snapshot) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	path := s.Path(dir)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return "", fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename snapshot: %w", err)
	}

	return path, nil
}

// Read loads and validates the snapshot at path.
func Read(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Latest returns the newest snapshot file in dir that was taken while the
// legacy columns existed, or "" if there is none. Unreadable files and
// snapshots taken after cleanup are skipped.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, FilePrefix+"*.json"))
	if err != nil {
		return "", fmt.Errorf("list snapshots: %w", err)
	}
	// Names embed a fixed-width UTC timestamp, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, m := range matches {
		s, err := Read(m)
		if err != nil || !s.LegacyColumns {
			continue
		}
		return m, nil
	}
	return "", nil
}
