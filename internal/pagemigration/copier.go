package pagemigration

import (
	"context"
	"fmt"
	"strings"

	"github.com/adintel/adintel/internal/models"
	"github.com/rs/zerolog"
)

// CopyResult counts what the Copier did. Brands without a page URL are not
// candidates and appear in none of the counts.
type CopyResult struct {
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
	// Candidates are the legacy rows considered, in processing order.
	Candidates []*models.LegacyBrand `json:"-"`
}

// Copier creates one brand page per legacy brand page_url.
type Copier struct {
	store  CopyStore
	logger zerolog.Logger
}

// NewCopier creates a new Copier.
func NewCopier(store CopyStore, logger zerolog.Logger) *Copier {
	return &Copier{
		store:  store,
		logger: logger.With().Str("component", "copier").Logger(),
	}
}

// Migrate copies every candidate that does not already have its page. Each
// insert commits on its own, so a rerun after a failure resumes where the
// previous run stopped. The first failed insert aborts the copy.
func (c *Copier) Migrate(ctx context.Context, dryRun bool) (CopyResult, error) {
	var result CopyResult

	hasPageURL, err := c.store.ColumnExists(ctx, tableBrands, columnPageURL)
	if err != nil {
		return result, fmt.Errorf("inspect brands: %w", err)
	}
	if !hasPageURL {
		c.logger.Info().Msg("brands.page_url no longer exists, nothing to copy")
		return result, nil
	}

	candidates, err := c.store.ListPageCandidates(ctx)
	if err != nil {
		return result, err
	}
	result.Candidates = candidates
	result.Total = len(candidates)
	c.logger.Info().Int("candidates", result.Total).Msg("copying brand pages")

	// A dry run before the schema step has no brand_pages table to look in.
	hasPages := true
	if dryRun {
		if hasPages, err = c.store.TableExists(ctx, tableBrandPages); err != nil {
			return result, fmt.Errorf("inspect schema: %w", err)
		}
	}

	for _, brand := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !brand.HasPageURL() {
			continue
		}
		pageURL := *brand.PageURL

		exists := false
		if hasPages {
			if exists, err = c.store.BrandPageExists(ctx, brand.ID, pageURL); err != nil {
				return result, fmt.Errorf("brand %q (id %d): %w", brand.BrandName, brand.ID, err)
			}
		}
		if exists {
			c.logger.Debug().Int64("brand_id", brand.ID).Str("brand", brand.BrandName).Msg("brand page already exists, skipping")
			result.Skipped++
			continue
		}

		if dryRun {
			c.logger.Info().
				Int64("brand_id", brand.ID).
				Str("brand", brand.BrandName).
				Str("page_url", pageURL).
				Msg("[dry-run] would create brand page")
			result.Migrated++
			continue
		}

		page := models.NewBrandPageFromLegacy(brand)
		if err := c.store.CreateBrandPage(ctx, page); err != nil {
			return result, fmt.Errorf("migrate brand %q (id %d): %w", brand.BrandName, brand.ID, err)
		}
		c.logger.Info().
			Int64("brand_id", brand.ID).
			Str("brand", brand.BrandName).
			Int64("page_id", page.ID).
			Msg("brand page created")
		result.Migrated++
	}

	c.logger.Info().
		Int("migrated", result.Migrated).
		Int("skipped", result.Skipped).
		Int("total", result.Total).
		Msg("brand page copy finished")
	return result, nil
}

// Confirm checks that every candidate now has its page and that the table
// holds no orphans or duplicates. Cleanup must not run unless Confirm passes.
func (c *Copier) Confirm(ctx context.Context, candidates []*models.LegacyBrand) error {
	var missing []string
	for _, brand := range candidates {
		if !brand.HasPageURL() {
			continue
		}
		exists, err := c.store.BrandPageExists(ctx, brand.ID, *brand.PageURL)
		if err != nil {
			return fmt.Errorf("confirm brand %q (id %d): %w", brand.BrandName, brand.ID, err)
		}
		if !exists {
			missing = append(missing, fmt.Sprintf("%s (id %d)", brand.BrandName, brand.ID))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: brand pages missing for %s", ErrVerificationFailed, strings.Join(missing, ", "))
	}

	orphans, err := c.store.CountOrphanBrandPages(ctx)
	if err != nil {
		return fmt.Errorf("confirm orphans: %w", err)
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d orphaned brand pages", ErrVerificationFailed, orphans)
	}

	dups, err := c.store.ListDuplicateBrandPages(ctx)
	if err != nil {
		return fmt.Errorf("confirm duplicates: %w", err)
	}
	if len(dups) > 0 {
		return fmt.Errorf("%w: %d duplicate (brand_id, page_url) pairs", ErrVerificationFailed, len(dups))
	}

	c.logger.Info().Int("brands", len(candidates)).Msg("brand page copy confirmed")
	return nil
}
