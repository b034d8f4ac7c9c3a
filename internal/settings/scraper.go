// Package settings provides the typed view of the global settings table.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/adintel/adintel/internal/models"
)

// SettingKey names a row of the settings table.
type SettingKey string

const (
	SettingKeyScraperEnabled      SettingKey = "scraper_enabled"
	SettingKeyMaxAdsPerBrand      SettingKey = "max_ads_per_brand"
	SettingKeyMaxDailyAdsPerBrand SettingKey = "max_daily_ads_per_brand"
)

// DefaultKeys lists the keys seeded on first migration, in seed order.
func DefaultKeys() []SettingKey {
	return []SettingKey{
		SettingKeyScraperEnabled,
		SettingKeyMaxAdsPerBrand,
		SettingKeyMaxDailyAdsPerBrand,
	}
}

// ScraperSettings holds the global scraping configuration.
type ScraperSettings struct {
	Enabled             bool `json:"scraper_enabled"`
	MaxAdsPerBrand      int  `json:"max_ads_per_brand"`
	MaxDailyAdsPerBrand int  `json:"max_daily_ads_per_brand"`
}

// DefaultScraperSettings returns the values seeded when the settings table is created.
func DefaultScraperSettings() ScraperSettings {
	return ScraperSettings{
		Enabled:             true,
		MaxAdsPerBrand:      50,
		MaxDailyAdsPerBrand: 10,
	}
}

// Validate validates the scraper settings.
func (s *ScraperSettings) Validate() error {
	if s.MaxAdsPerBrand < 1 {
		return errors.New("max_ads_per_brand must be at least 1")
	}
	if s.MaxDailyAdsPerBrand < 1 {
		return errors.New("max_daily_ads_per_brand must be at least 1")
	}
	if s.MaxDailyAdsPerBrand > s.MaxAdsPerBrand {
		return errors.New("max_daily_ads_per_brand cannot exceed max_ads_per_brand")
	}
	return nil
}

// Rows renders the settings as key/value rows in DefaultKeys order.
func (s ScraperSettings) Rows() []models.Setting {
	return []models.Setting{
		{Key: string(SettingKeyScraperEnabled), Value: strconv.FormatBool(s.Enabled)},
		{Key: string(SettingKeyMaxAdsPerBrand), Value: strconv.Itoa(s.MaxAdsPerBrand)},
		{Key: string(SettingKeyMaxDailyAdsPerBrand), Value: strconv.Itoa(s.MaxDailyAdsPerBrand)},
	}
}

// MissingKeys returns the default keys absent from rows.
func MissingKeys(rows []models.Setting) []SettingKey {
	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		present[r.Key] = true
	}
	var missing []SettingKey
	for _, k := range DefaultKeys() {
		if !present[string(k)] {
			missing = append(missing, k)
		}
	}
	return missing
}

// ParseScraperSettings builds ScraperSettings from settings rows. Keys that
// are absent keep their default; unknown keys are ignored.
func ParseScraperSettings(rows []models.Setting) (ScraperSettings, error) {
	s := DefaultScraperSettings()
	for _, r := range rows {
		value := strings.TrimSpace(r.Value)
		switch SettingKey(r.Key) {
		case SettingKeyScraperEnabled:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return s, fmt.Errorf("invalid %s value %q: %w", r.Key, r.Value, err)
			}
			s.Enabled = b
		case SettingKeyMaxAdsPerBrand:
			n, err := strconv.Atoi(value)
			if err != nil {
				return s, fmt.Errorf("invalid %s value %q: %w", r.Key, r.Value, err)
			}
			s.MaxAdsPerBrand = n
		case SettingKeyMaxDailyAdsPerBrand:
			n, err := strconv.Atoi(value)
			if err != nil {
				return s, fmt.Errorf("invalid %s value %q: %w", r.Key, r.Value, err)
			}
			s.MaxDailyAdsPerBrand = n
		}
	}
	return s, nil
}

// Limits are the scraping limits that apply to one brand.
type Limits struct {
	Enabled     bool `json:"enabled"`
	MaxAds      int  `json:"max_ads"`
	MaxDailyAds int  `json:"max_daily_ads"`
	Overridden  bool `json:"overridden"`
}

// EffectiveLimits applies a brand's overrides on top of the global settings.
// Overrides only take effect when the brand has use_overrides set, and each
// override falls back to the global value when null.
func EffectiveLimits(brand *models.Brand, global ScraperSettings) Limits {
	limits := Limits{
		Enabled:     global.Enabled && brand.Active,
		MaxAds:      global.MaxAdsPerBrand,
		MaxDailyAds: global.MaxDailyAdsPerBrand,
	}
	if !brand.UseOverrides {
		return limits
	}
	if brand.MaxAdsOverride != nil {
		limits.MaxAds = *brand.MaxAdsOverride
		limits.Overridden = true
	}
	if brand.MaxDailyAdsOverride != nil {
		limits.MaxDailyAds = *brand.MaxDailyAdsOverride
		limits.Overridden = true
	}
	return limits
}
