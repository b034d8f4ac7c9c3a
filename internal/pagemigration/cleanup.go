package pagemigration

import (
	"context"

	"github.com/adintel/adintel/internal/models"
	"github.com/rs/zerolog"
)

// CleanupResult lists which legacy columns were dropped.
type CleanupResult struct {
	Dropped []string `json:"dropped,omitempty"`
	Failed  []string `json:"failed,omitempty"`
	Skipped bool     `json:"skipped,omitempty"`
}

// Cleanup drops the legacy page columns from brands. It is best effort:
// errors are logged and never returned.
type Cleanup struct {
	store  CleanupStore
	logger zerolog.Logger
}

// NewCleanup creates a new Cleanup.
func NewCleanup(store CleanupStore, logger zerolog.Logger) *Cleanup {
	return &Cleanup{
		store:  store,
		logger: logger.With().Str("component", "cleanup").Logger(),
	}
}

// Run drops every legacy column that still exists.
func (c *Cleanup) Run(ctx context.Context, dryRun bool) CleanupResult {
	var result CleanupResult
	for _, col := range models.LegacyColumns {
		if dryRun {
			exists, err := c.store.ColumnExists(ctx, tableBrands, col)
			if err != nil {
				c.logger.Warn().Err(err).Str("column", col).Msg("could not inspect legacy column")
				continue
			}
			if exists {
				c.logger.Info().Str("column", col).Msg("[dry-run] would drop legacy column")
			}
			continue
		}

		if err := c.store.DropColumnIfExists(ctx, tableBrands, col); err != nil {
			c.logger.Warn().Err(err).Str("column", col).Msg("failed to drop legacy column")
			result.Failed = append(result.Failed, col)
			continue
		}
		result.Dropped = append(result.Dropped, col)
	}

	if !dryRun {
		c.logger.Info().Strs("dropped", result.Dropped).Strs("failed", result.Failed).Msg("legacy column cleanup finished")
	}
	return result
}
