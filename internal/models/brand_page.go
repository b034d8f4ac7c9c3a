package models

import "time"

// BrandPage is one trackable social page belonging to a Brand.
type BrandPage struct {
	ID              int64      `json:"id"`
	BrandID         int64      `json:"brand_id"`
	PageURL         string     `json:"page_url"`
	PageName        *string    `json:"page_name,omitempty"` // populated lazily by the scraper
	IsActive        bool       `json:"is_active"`
	LastScrapedAt   *time.Time `json:"last_scraped_at,omitempty"`
	TotalAdsScraped int        `json:"total_ads_scraped"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewBrandPageFromLegacy builds the page that replaces a legacy brand's
// single page_url. The caller must check HasPageURL first.
func NewBrandPageFromLegacy(b *LegacyBrand) *BrandPage {
	now := time.Now()
	page := &BrandPage{
		BrandID:         b.ID,
		IsActive:        b.Active,
		LastScrapedAt:   b.LastScrapedAt,
		TotalAdsScraped: b.TotalAdsScraped,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if b.PageURL != nil {
		page.PageURL = *b.PageURL
	}
	return page
}

// BrandPageSummary is a brand joined with aggregated stats of its pages.
type BrandPageSummary struct {
	BrandID             int64      `json:"brand_id"`
	BrandName           string     `json:"brand_name"`
	Active              bool       `json:"active"`
	UseOverrides        bool       `json:"use_overrides"`
	MaxAdsOverride      *int       `json:"max_ads_override,omitempty"`
	MaxDailyAdsOverride *int       `json:"max_daily_ads_override,omitempty"`
	PageCount           int        `json:"page_count"`
	ActivePageCount     int        `json:"active_page_count"`
	TotalAdsScraped     int64      `json:"total_ads_scraped"`
	LastScrapedAt       *time.Time `json:"last_scraped_at,omitempty"`
}

// Brand returns the brand part of the summary.
func (s *BrandPageSummary) Brand() *Brand {
	return &Brand{
		ID:                  s.BrandID,
		BrandName:           s.BrandName,
		Active:              s.Active,
		UseOverrides:        s.UseOverrides,
		MaxAdsOverride:      s.MaxAdsOverride,
		MaxDailyAdsOverride: s.MaxDailyAdsOverride,
	}
}

// DuplicateBrandPage is a (brand_id, page_url) pair that appears more than once.
type DuplicateBrandPage struct {
	BrandID int64  `json:"brand_id"`
	PageURL string `json:"page_url"`
	Count   int    `json:"count"`
}

// BrandRef identifies a brand by id and name.
type BrandRef struct {
	ID        int64  `json:"id"`
	BrandName string `json:"brand_name"`
}
