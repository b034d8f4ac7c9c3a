package pagemigration

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrBrandsTableMissing is returned when there is no brands table to migrate.
var ErrBrandsTableMissing = errors.New("brands table does not exist; apply base migrations first")

// Decision is the Guard's verdict with the rule that produced it.
type Decision struct {
	Needed bool   `json:"needed"`
	Reason string `json:"reason"`
}

// Guard inspects the live schema to decide whether the migration must run.
type Guard struct {
	store  GuardStore
	logger zerolog.Logger
}

// NewGuard creates a new Guard.
func NewGuard(store GuardStore, logger zerolog.Logger) *Guard {
	return &Guard{
		store:  store,
		logger: logger.With().Str("component", "guard").Logger(),
	}
}

// NeedsMigration reports whether the migration must run.
func (g *Guard) NeedsMigration(ctx context.Context) (bool, error) {
	d, err := g.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return d.Needed, nil
}

// Evaluate applies the rules in order and stops at the first that decides.
// The completion marker wins over every schema heuristic.
func (g *Guard) Evaluate(ctx context.Context) (Decision, error) {
	hasBrands, err := g.store.TableExists(ctx, tableBrands)
	if err != nil {
		return Decision{}, fmt.Errorf("inspect schema: %w", err)
	}
	if !hasBrands {
		return Decision{}, ErrBrandsTableMissing
	}

	marker, err := g.store.GetDataMigration(ctx, MarkerName)
	if err != nil {
		return Decision{}, fmt.Errorf("read migration marker: %w", err)
	}
	if marker != nil {
		return g.decide(false, fmt.Sprintf("completion marker %q recorded at %s", MarkerName, marker.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")))
	}

	hasPages, err := g.store.TableExists(ctx, tableBrandPages)
	if err != nil {
		return Decision{}, fmt.Errorf("inspect schema: %w", err)
	}
	if !hasPages {
		return g.decide(true, "brand_pages table does not exist")
	}

	hasPageURL, err := g.store.ColumnExists(ctx, tableBrands, columnPageURL)
	if err != nil {
		return Decision{}, fmt.Errorf("inspect schema: %w", err)
	}
	if hasPageURL {
		return g.decide(true, "brands.page_url column still present")
	}

	pages, err := g.store.CountRows(ctx, tableBrandPages)
	if err != nil {
		return Decision{}, fmt.Errorf("inspect schema: %w", err)
	}
	if pages == 0 {
		return g.decide(true, "brand_pages table is empty")
	}

	return g.decide(false, "schema already migrated")
}

func (g *Guard) decide(needed bool, reason string) (Decision, error) {
	g.logger.Info().Bool("needed", needed).Str("reason", reason).Msg("migration check")
	return Decision{Needed: needed, Reason: reason}, nil
}
