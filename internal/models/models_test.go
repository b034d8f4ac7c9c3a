package models

import (
	"encoding/json"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestLegacyBrand_HasPageURL(t *testing.T) {
	tests := []struct {
		name string
		url  *string
		want bool
	}{
		{"nil", nil, false},
		{"empty", strPtr(""), false},
		{"blank", strPtr("   "), false},
		{"set", strPtr("https://facebook.com/nike"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &LegacyBrand{ID: 1, PageURL: tt.url}
			if got := b.HasPageURL(); got != tt.want {
				t.Errorf("HasPageURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewBrandPageFromLegacy(t *testing.T) {
	scraped := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	legacy := &LegacyBrand{
		ID:              1,
		BrandName:       "Nike",
		PageURL:         strPtr("https://facebook.com/nike"),
		Active:          true,
		LastScrapedAt:   &scraped,
		TotalAdsScraped: 42,
	}

	page := NewBrandPageFromLegacy(legacy)

	if page.BrandID != 1 {
		t.Errorf("expected BrandID 1, got %d", page.BrandID)
	}
	if page.PageURL != "https://facebook.com/nike" {
		t.Errorf("expected PageURL to be copied, got %q", page.PageURL)
	}
	if !page.IsActive {
		t.Error("expected IsActive to inherit brand active flag")
	}
	if page.LastScrapedAt == nil || !page.LastScrapedAt.Equal(scraped) {
		t.Errorf("expected LastScrapedAt %v, got %v", scraped, page.LastScrapedAt)
	}
	if page.TotalAdsScraped != 42 {
		t.Errorf("expected TotalAdsScraped 42, got %d", page.TotalAdsScraped)
	}
	if page.PageName != nil {
		t.Error("expected PageName to be left for the scraper")
	}
	if page.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestNewBrandPageFromLegacy_Inactive(t *testing.T) {
	page := NewBrandPageFromLegacy(&LegacyBrand{ID: 7, PageURL: strPtr("https://x.test/p"), Active: false})
	if page.IsActive {
		t.Error("expected inactive brand to produce inactive page")
	}
}

func TestLegacyBrand_DecodesSnapshotRow(t *testing.T) {
	row := []byte(`{"id": 3, "brand_name": "Adidas", "page_url": "https://facebook.com/adidas",
		"active": false, "min_active_days": 5, "last_scraped_at": "2024-05-01T10:00:00.123456+00:00",
		"total_ads_scraped": 9, "created_at": "2024-01-01T00:00:00+00:00", "updated_at": "2024-01-02T00:00:00+00:00"}`)

	var b LegacyBrand
	if err := json.Unmarshal(row, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.ID != 3 || b.BrandName != "Adidas" {
		t.Errorf("unexpected identity: %+v", b)
	}
	if !b.HasPageURL() {
		t.Error("expected page url to decode")
	}
	if b.LastScrapedAt == nil || b.LastScrapedAt.Year() != 2024 {
		t.Errorf("expected last_scraped_at to decode, got %v", b.LastScrapedAt)
	}
	if b.MinActiveDays != 5 || b.TotalAdsScraped != 9 {
		t.Errorf("unexpected counters: %+v", b)
	}
}

func TestNewDataMigration(t *testing.T) {
	m, err := NewDataMigration("multi_pages", map[string]int{"migrated": 2})
	if err != nil {
		t.Fatalf("NewDataMigration() error: %v", err)
	}
	if m.Name != "multi_pages" {
		t.Errorf("expected name multi_pages, got %s", m.Name)
	}
	if string(m.Details) != `{"migrated":2}` {
		t.Errorf("unexpected details %s", m.Details)
	}
	if m.AppliedAt.IsZero() {
		t.Error("expected AppliedAt to be set")
	}
}

func TestNewDataMigration_Unmarshalable(t *testing.T) {
	if _, err := NewDataMigration("x", make(chan int)); err == nil {
		t.Error("expected error for unmarshalable details")
	}
}
