package db

import (
	"context"
	"fmt"

	"github.com/adintel/adintel/internal/models"
)

// Brand page methods

// BrandPageExists reports whether brandID already owns a page with pageURL.
func (db *DB) BrandPageExists(ctx context.Context, brandID int64, pageURL string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM brand_pages WHERE brand_id = $1 AND page_url = $2)",
		brandID, pageURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check brand page: %w", err)
	}
	return exists, nil
}

// CreateBrandPage inserts p and fills in its generated fields.
func (db *DB) CreateBrandPage(ctx context.Context, p *models.BrandPage) error {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO brand_pages (brand_id, page_url, page_name, is_active, last_scraped_at, total_ads_scraped)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, p.BrandID, p.PageURL, p.PageName, p.IsActive, p.LastScrapedAt, p.TotalAdsScraped,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create brand page: %w", err)
	}
	return nil
}

// ListBrandPagesByBrand returns the pages of one brand ordered by id. It is a
// test-support helper; the migration itself never reads pages back.
func (db *DB) ListBrandPagesByBrand(ctx context.Context, brandID int64) ([]*models.BrandPage, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, brand_id, page_url, page_name, is_active, last_scraped_at,
		       total_ads_scraped, created_at, updated_at
		FROM brand_pages
		WHERE brand_id = $1
		ORDER BY id
	`, brandID)
	if err != nil {
		return nil, fmt.Errorf("list brand pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.BrandPage
	for rows.Next() {
		var p models.BrandPage
		if err := rows.Scan(
			&p.ID, &p.BrandID, &p.PageURL, &p.PageName, &p.IsActive, &p.LastScrapedAt,
			&p.TotalAdsScraped, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan brand page: %w", err)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// CountOrphanBrandPages counts pages whose brand_id has no brands row.
func (db *DB) CountOrphanBrandPages(ctx context.Context) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM brand_pages bp
		LEFT JOIN brands b ON b.id = bp.brand_id
		WHERE b.id IS NULL
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orphan brand pages: %w", err)
	}
	return n, nil
}

// ListDuplicateBrandPages returns (brand_id, page_url) pairs stored more than once.
func (db *DB) ListDuplicateBrandPages(ctx context.Context) ([]models.DuplicateBrandPage, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT brand_id, page_url, COUNT(*)
		FROM brand_pages
		GROUP BY brand_id, page_url
		HAVING COUNT(*) > 1
		ORDER BY brand_id, page_url
	`)
	if err != nil {
		return nil, fmt.Errorf("list duplicate brand pages: %w", err)
	}
	defer rows.Close()

	var dups []models.DuplicateBrandPage
	for rows.Next() {
		var d models.DuplicateBrandPage
		if err := rows.Scan(&d.BrandID, &d.PageURL, &d.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate brand page: %w", err)
		}
		dups = append(dups, d)
	}
	return dups, rows.Err()
}
