// Package models defines the domain models for adintel.
package models

import (
	"strings"
	"time"
)

// Brand is a tracked competitor after the multi-page migration.
type Brand struct {
	ID                  int64     `json:"id"`
	BrandName           string    `json:"brand_name"`
	Active              bool      `json:"active"`
	MinActiveDays       int       `json:"min_active_days"`
	MaxAdsOverride      *int      `json:"max_ads_override,omitempty"`
	MaxDailyAdsOverride *int      `json:"max_daily_ads_override,omitempty"`
	UseOverrides        bool      `json:"use_overrides"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// LegacyBrand is a brands row as it existed before pages were split out.
// Field names match the column names so snapshot rows decode directly.
type LegacyBrand struct {
	ID              int64      `json:"id"`
	BrandName       string     `json:"brand_name"`
	PageURL         *string    `json:"page_url"`
	Active          bool       `json:"active"`
	MinActiveDays   int        `json:"min_active_days"`
	LastScrapedAt   *time.Time `json:"last_scraped_at"`
	TotalAdsScraped int        `json:"total_ads_scraped"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasPageURL reports whether the legacy row carries a usable page URL.
func (b *LegacyBrand) HasPageURL() bool {
	return b.PageURL != nil && strings.TrimSpace(*b.PageURL) != ""
}

// LegacyColumns are the brands columns that move to brand_pages.
var LegacyColumns = []string{"page_url", "last_scraped_at", "total_ads_scraped"}

// OverrideColumns are the per-brand limit columns added by the migration.
var OverrideColumns = []string{"max_ads_override", "max_daily_ads_override", "use_overrides"}
