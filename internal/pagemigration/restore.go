package pagemigration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/adintel/adintel/internal/models"
	"github.com/adintel/adintel/internal/snapshot"
	"github.com/rs/zerolog"
)

// ErrRollbackNotAutomated is returned by the --rollback flag, which only
// prints the manual procedure.
var ErrRollbackNotAutomated = errors.New("rollback is a manual procedure")

// RollbackInstructions is printed for --rollback and after a failed run.
const RollbackInstructions = `Manual rollback procedure

  1. Stop every process that writes to the database.
  2. Either restore the full database dump taken before the migration,
     or re-derive the legacy columns from the JSON snapshot:

       adintel-migrate restore --from backup_before_multi_pages_<timestamp>.json

     Add --dry-run first to see each step without changing anything.
  3. Run "adintel-migrate status" and confirm the migration is reported
     as needed again.
`

// RestoreState is a step of the restore state machine.
type RestoreState string

const (
	StatePending         RestoreState = "pending"
	StateSnapshotLoaded  RestoreState = "snapshot_loaded"
	StateColumnsRestored RestoreState = "columns_restored"
	StateValuesRestored  RestoreState = "values_restored"
	StateTablesDropped   RestoreState = "tables_dropped"
	StateUnmarked        RestoreState = "unmarked"
	StateDone            RestoreState = "done"
)

// RestoreResult reports how far a restore got.
type RestoreResult struct {
	State    RestoreState `json:"state"`
	Snapshot string       `json:"snapshot"`
	Rows     int          `json:"rows"`
	Restored int          `json:"restored"`
	Missing  []int64      `json:"missing,omitempty"`
	DryRun   bool         `json:"dry_run,omitempty"`
}

// RestoreError wraps a failure with the last state reached.
type RestoreError struct {
	State RestoreState
	Err   error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore stopped after %s: %v", e.State, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

// Restorer reverses the page migration from a backup snapshot. Every
// transition can be repeated, so a failed restore is resumed by running it
// again.
type Restorer struct {
	store  RestoreStore
	logger zerolog.Logger
}

// NewRestorer creates a new Restorer.
func NewRestorer(store RestoreStore, logger zerolog.Logger) *Restorer {
	return &Restorer{
		store:  store,
		logger: logger.With().Str("component", "restore").Logger(),
	}
}

type transition struct {
	to  RestoreState
	run func(ctx context.Context, brands []*models.LegacyBrand, result *RestoreResult) error
}

// Restore walks pending → snapshot_loaded → columns_restored →
// values_restored → tables_dropped → unmarked → done.
func (r *Restorer) Restore(ctx context.Context, path string, dryRun bool) (RestoreResult, error) {
	result := RestoreResult{State: StatePending, Snapshot: path, DryRun: dryRun}

	snap, err := snapshot.Read(path)
	if err != nil {
		return result, &RestoreError{State: result.State, Err: err}
	}
	if snap.Table != tableBrands {
		return result, &RestoreError{
			State: result.State,
			Err:   fmt.Errorf("%w: snapshot is of table %q, want %q", snapshot.ErrInvalidSnapshot, snap.Table, tableBrands),
		}
	}
	brands, err := decodeLegacyBrands(snap.Data)
	if err != nil {
		return result, &RestoreError{State: result.State, Err: err}
	}
	result.Rows = len(brands)
	r.advance(&result, StateSnapshotLoaded)

	steps := []transition{
		{StateColumnsRestored, r.restoreColumns},
		{StateValuesRestored, r.restoreValues},
		{StateTablesDropped, r.dropTables},
		{StateUnmarked, r.unmark},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, &RestoreError{State: result.State, Err: err}
		}
		if err := step.run(ctx, brands, &result); err != nil {
			return result, &RestoreError{State: result.State, Err: err}
		}
		r.advance(&result, step.to)
	}

	r.advance(&result, StateDone)
	return result, nil
}

func (r *Restorer) advance(result *RestoreResult, to RestoreState) {
	prefix := ""
	if result.DryRun {
		prefix = "[dry-run] "
	}
	r.logger.Info().Str("from", string(result.State)).Str("to", string(to)).Msg(prefix + "restore state changed")
	result.State = to
}

func (r *Restorer) restoreColumns(ctx context.Context, _ []*models.LegacyBrand, result *RestoreResult) error {
	if result.DryRun {
		r.logger.Info().Strs("columns", models.LegacyColumns).Msg("[dry-run] would re-create legacy columns")
		return nil
	}
	return r.store.AddLegacyBrandColumns(ctx)
}

func (r *Restorer) restoreValues(ctx context.Context, brands []*models.LegacyBrand, result *RestoreResult) error {
	result.Restored = 0
	result.Missing = nil
	for _, b := range brands {
		if result.DryRun {
			result.Restored++
			continue
		}
		found, err := r.store.RestoreLegacyBrandFields(ctx, b)
		if err != nil {
			return err
		}
		if !found {
			result.Missing = append(result.Missing, b.ID)
			continue
		}
		result.Restored++
	}
	if len(result.Missing) > 0 {
		r.logger.Warn().Int("missing", len(result.Missing)).Msg("snapshot rows without a matching brand were not restored")
	}
	r.logger.Info().Int("restored", result.Restored).Bool("dry_run", result.DryRun).Msg("legacy values restored")
	return nil
}

func (r *Restorer) dropTables(ctx context.Context, _ []*models.LegacyBrand, result *RestoreResult) error {
	if result.DryRun {
		r.logger.Info().
			Strs("tables", []string{tableBrandPages, tableSettings}).
			Strs("columns", models.OverrideColumns).
			Msg("[dry-run] would drop migration tables and override columns")
		return nil
	}
	for _, table := range []string{tableBrandPages, tableSettings} {
		if err := r.store.DropTableIfExists(ctx, table); err != nil {
			return err
		}
	}
	for _, col := range models.OverrideColumns {
		if err := r.store.DropColumnIfExists(ctx, tableBrands, col); err != nil {
			return err
		}
	}
	return nil
}

func (r *Restorer) unmark(ctx context.Context, _ []*models.LegacyBrand, result *RestoreResult) error {
	if result.DryRun {
		r.logger.Info().Str("marker", MarkerName).Msg("[dry-run] would delete completion marker")
		return nil
	}
	return r.store.DeleteDataMigration(ctx, MarkerName)
}

// decodeLegacyBrands rejects rows exported after cleanup. Such rows have no
// page_url key and would restore NULL over every page URL.
func decodeLegacyBrands(rows []json.RawMessage) ([]*models.LegacyBrand, error) {
	brands := make([]*models.LegacyBrand, 0, len(rows))
	var bad []string
	for i, raw := range rows {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			bad = append(bad, fmt.Sprintf("row %d: %v", i, err))
			continue
		}
		var absent []string
		for _, col := range models.LegacyColumns {
			if _, ok := fields[col]; !ok {
				absent = append(absent, col)
			}
		}
		if len(absent) > 0 {
			bad = append(bad, fmt.Sprintf("row %d: missing legacy columns %s", i, strings.Join(absent, ", ")))
			continue
		}

		var b models.LegacyBrand
		if err := json.Unmarshal(raw, &b); err != nil {
			bad = append(bad, fmt.Sprintf("row %d: %v", i, err))
			continue
		}
		if b.ID == 0 {
			bad = append(bad, fmt.Sprintf("row %d: missing id", i))
			continue
		}
		brands = append(brands, &b)
	}
	if len(bad) > 0 {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrInvalidSnapshot, strings.Join(bad, "; "))
	}
	return brands, nil
}
