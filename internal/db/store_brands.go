package db

import (
	"context"
	"fmt"

	"github.com/adintel/adintel/internal/models"
)

// Brand methods

// ListPageCandidates returns legacy brands with a non-blank page_url,
// ordered by id.
func (db *DB) ListPageCandidates(ctx context.Context) ([]*models.LegacyBrand, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, brand_name, page_url, active, min_active_days,
		       last_scraped_at, COALESCE(total_ads_scraped, 0), created_at, updated_at
		FROM brands
		WHERE page_url IS NOT NULL AND btrim(page_url) <> ''
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list page candidates: %w", err)
	}
	defer rows.Close()

	var brands []*models.LegacyBrand
	for rows.Next() {
		var b models.LegacyBrand
		if err := rows.Scan(
			&b.ID, &b.BrandName, &b.PageURL, &b.Active, &b.MinActiveDays,
			&b.LastScrapedAt, &b.TotalAdsScraped, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan legacy brand: %w", err)
		}
		brands = append(brands, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy brands: %w", err)
	}

	return brands, nil
}

// CreateLegacyBrand inserts a brand with the pre-migration columns.
func (db *DB) CreateLegacyBrand(ctx context.Context, b *models.LegacyBrand) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO brands (brand_name, page_url, active, min_active_days, last_scraped_at, total_ads_scraped)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, b.BrandName, b.PageURL, b.Active, b.MinActiveDays, b.LastScrapedAt, b.TotalAdsScraped,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create legacy brand %s: %w", b.BrandName, err)
	}
	return nil
}

// AddLegacyBrandColumns re-creates the pre-migration page columns on brands.
func (db *DB) AddLegacyBrandColumns(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		ALTER TABLE brands
			ADD COLUMN IF NOT EXISTS page_url TEXT,
			ADD COLUMN IF NOT EXISTS last_scraped_at TIMESTAMPTZ,
			ADD COLUMN IF NOT EXISTS total_ads_scraped INTEGER NOT NULL DEFAULT 0
	`)
	if err != nil {
		return fmt.Errorf("add legacy brand columns: %w", err)
	}
	return nil
}

// RestoreLegacyBrandFields writes the page columns of b back onto the brand
// row with the same id. It reports whether such a row exists.
func (db *DB) RestoreLegacyBrandFields(ctx context.Context, b *models.LegacyBrand) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE brands
		SET page_url = $2, last_scraped_at = $3, total_ads_scraped = $4
		WHERE id = $1
	`, b.ID, b.PageURL, b.LastScrapedAt, b.TotalAdsScraped)
	if err != nil {
		return false, fmt.Errorf("restore brand %d: %w", b.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBrandsWithoutPages returns brands that own no brand pages.
func (db *DB) ListBrandsWithoutPages(ctx context.Context) ([]models.BrandRef, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT b.id, b.brand_name
		FROM brands b
		WHERE NOT EXISTS (SELECT 1 FROM brand_pages bp WHERE bp.brand_id = b.id)
		ORDER BY b.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list brands without pages: %w", err)
	}
	defer rows.Close()

	var refs []models.BrandRef
	for rows.Next() {
		var r models.BrandRef
		if err := rows.Scan(&r.ID, &r.BrandName); err != nil {
			return nil, fmt.Errorf("scan brand ref: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// ListBrandPageSummaries joins brands with aggregated page stats.
func (db *DB) ListBrandPageSummaries(ctx context.Context, limit int) ([]*models.BrandPageSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT b.id, b.brand_name, b.active, b.use_overrides,
		       b.max_ads_override, b.max_daily_ads_override,
		       COUNT(bp.id),
		       COUNT(bp.id) FILTER (WHERE bp.is_active),
		       COALESCE(SUM(bp.total_ads_scraped), 0),
		       MAX(bp.last_scraped_at)
		FROM brands b
		LEFT JOIN brand_pages bp ON bp.brand_id = b.id
		GROUP BY b.id
		ORDER BY b.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list brand page summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.BrandPageSummary
	for rows.Next() {
		var s models.BrandPageSummary
		if err := rows.Scan(
			&s.BrandID, &s.BrandName, &s.Active, &s.UseOverrides,
			&s.MaxAdsOverride, &s.MaxDailyAdsOverride,
			&s.PageCount, &s.ActivePageCount, &s.TotalAdsScraped, &s.LastScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan brand page summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate brand page summaries: %w", err)
	}

	return summaries, nil
}
