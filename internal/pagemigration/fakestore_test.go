package pagemigration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adintel/adintel/internal/models"
	"github.com/rs/zerolog"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory database that understands just enough of the
// brands schema for the migration components.
type fakeStore struct {
	tables      map[string]bool
	columns     map[string]map[string]bool
	indexes     map[string]bool
	constraints map[string]bool
	triggers    map[string]bool

	brands   []*models.LegacyBrand
	pages    []*models.BrandPage
	settings map[string]string
	marker   *models.DataMigration
	// overrides holds the per-brand limit columns by brand id.
	overrides map[int64]models.Brand

	locked     bool
	nextPageID int64
	// errs fails the named method with the given error.
	errs map[string]error
	// failCreateFor fails CreateBrandPage for the given brand id.
	failCreateFor int64

	executed  [][]string
	mutations int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables:      map[string]bool{},
		columns:     map[string]map[string]bool{},
		indexes:     map[string]bool{},
		constraints: map[string]bool{},
		triggers:    map[string]bool{},
		settings:    map[string]string{},
		errs:        map[string]error{},
	}
}

// newLegacyStore returns a database in the pre-migration shape.
func newLegacyStore(brands ...*models.LegacyBrand) *fakeStore {
	s := newFakeStore()
	s.tables[tableBrands] = true
	s.columns[tableBrands] = map[string]bool{"id": true, "brand_name": true, "active": true}
	for _, c := range models.LegacyColumns {
		s.columns[tableBrands][c] = true
	}
	s.brands = brands
	return s
}

// newMigratedStore returns a database already in the post-migration shape.
func newMigratedStore() *fakeStore {
	s := newLegacyStore()
	s.applySchema()
	for _, c := range models.LegacyColumns {
		delete(s.columns[tableBrands], c)
	}
	for _, row := range []models.Setting{
		{Key: "scraper_enabled", Value: "true"},
		{Key: "max_ads_per_brand", Value: "50"},
		{Key: "max_daily_ads_per_brand", Value: "10"},
	} {
		s.settings[row.Key] = row.Value
	}
	// The legacy columns are gone, so the brand row no longer carries its URL.
	s.brands = []*models.LegacyBrand{legacyBrand(1, "Nike", "")}
	s.pages = []*models.BrandPage{{ID: 1, BrandID: 1, PageURL: "https://facebook.com/nike", IsActive: true}}
	s.nextPageID = 1
	return s
}

func legacyBrand(id int64, name, pageURL string) *models.LegacyBrand {
	b := &models.LegacyBrand{
		ID:        id,
		BrandName: name,
		Active:    true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if pageURL != "" {
		u := pageURL
		b.PageURL = &u
	}
	return b
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func (s *fakeStore) fail(method string) error {
	return s.errs[method]
}

func (s *fakeStore) applySchema() {
	s.tables[tableBrandPages] = true
	s.tables[tableSettings] = true
	for _, c := range models.OverrideColumns {
		s.columns[tableBrands][c] = true
	}
	for _, idx := range BrandPageIndexes {
		s.indexes[idx] = true
	}
	s.constraints[constraintBrandPageURL] = true
	s.triggers[triggerBrandPages] = true
	s.triggers[triggerSettings] = true
}

func (s *fakeStore) brandByID(id int64) *models.LegacyBrand {
	for _, b := range s.brands {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *fakeStore) TableExists(_ context.Context, table string) (bool, error) {
	if err := s.fail("TableExists"); err != nil {
		return false, err
	}
	return s.tables[table], nil
}

func (s *fakeStore) ColumnExists(_ context.Context, table, column string) (bool, error) {
	if err := s.fail("ColumnExists"); err != nil {
		return false, err
	}
	return s.columns[table][column], nil
}

func (s *fakeStore) IndexExists(_ context.Context, index string) (bool, error) {
	if err := s.fail("IndexExists"); err != nil {
		return false, err
	}
	return s.indexes[index], nil
}

func (s *fakeStore) ConstraintExists(_ context.Context, _, constraint string) (bool, error) {
	if err := s.fail("ConstraintExists"); err != nil {
		return false, err
	}
	return s.constraints[constraint], nil
}

func (s *fakeStore) TriggerExists(_ context.Context, _, trigger string) (bool, error) {
	if err := s.fail("TriggerExists"); err != nil {
		return false, err
	}
	return s.triggers[trigger], nil
}

func (s *fakeStore) CountRows(_ context.Context, table string) (int64, error) {
	if err := s.fail("CountRows"); err != nil {
		return 0, err
	}
	if !s.tables[table] {
		return 0, fmt.Errorf("relation %q does not exist", table)
	}
	switch table {
	case tableBrands:
		return int64(len(s.brands)), nil
	case tableBrandPages:
		return int64(len(s.pages)), nil
	case tableSettings:
		return int64(len(s.settings)), nil
	}
	return 0, nil
}

func (s *fakeStore) ExportTable(_ context.Context, table string) ([]json.RawMessage, error) {
	if err := s.fail("ExportTable"); err != nil {
		return nil, err
	}
	if table != tableBrands {
		return nil, fmt.Errorf("export of %s not supported", table)
	}
	// Like to_jsonb, rows only carry the columns the table has right now.
	rows := make([]json.RawMessage, 0, len(s.brands))
	for _, b := range s.brands {
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for _, c := range models.LegacyColumns {
			if !s.columns[tableBrands][c] {
				delete(fields, c)
			}
		}
		if raw, err = json.Marshal(fields); err != nil {
			return nil, err
		}
		rows = append(rows, raw)
	}
	return rows, nil
}

func (s *fakeStore) ExecStatements(_ context.Context, statements []string) error {
	if err := s.fail("ExecStatements"); err != nil {
		return err
	}
	s.executed = append(s.executed, statements)
	s.mutations++
	s.applySchema()
	return nil
}

func (s *fakeStore) InsertSettingIfAbsent(_ context.Context, key, value string) (bool, error) {
	if err := s.fail("InsertSettingIfAbsent"); err != nil {
		return false, err
	}
	if _, ok := s.settings[key]; ok {
		return false, nil
	}
	s.mutations++
	s.settings[key] = value
	return true, nil
}

func (s *fakeStore) ListPageCandidates(_ context.Context) ([]*models.LegacyBrand, error) {
	if err := s.fail("ListPageCandidates"); err != nil {
		return nil, err
	}
	var out []*models.LegacyBrand
	for _, b := range s.brands {
		if b.HasPageURL() {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) BrandPageExists(_ context.Context, brandID int64, pageURL string) (bool, error) {
	if err := s.fail("BrandPageExists"); err != nil {
		return false, err
	}
	if !s.tables[tableBrandPages] {
		return false, errors.New(`relation "brand_pages" does not exist`)
	}
	for _, p := range s.pages {
		if p.BrandID == brandID && p.PageURL == pageURL {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateBrandPage(_ context.Context, p *models.BrandPage) error {
	if err := s.fail("CreateBrandPage"); err != nil {
		return err
	}
	if s.failCreateFor != 0 && p.BrandID == s.failCreateFor {
		return errInjected
	}
	s.nextPageID++
	p.ID = s.nextPageID
	s.pages = append(s.pages, p)
	s.mutations++
	return nil
}

func (s *fakeStore) CountOrphanBrandPages(_ context.Context) (int64, error) {
	if err := s.fail("CountOrphanBrandPages"); err != nil {
		return 0, err
	}
	var n int64
	for _, p := range s.pages {
		if s.brandByID(p.BrandID) == nil {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ListDuplicateBrandPages(_ context.Context) ([]models.DuplicateBrandPage, error) {
	if err := s.fail("ListDuplicateBrandPages"); err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, p := range s.pages {
		counts[fmt.Sprintf("%d|%s", p.BrandID, p.PageURL)]++
	}
	var dups []models.DuplicateBrandPage
	for key, n := range counts {
		if n < 2 {
			continue
		}
		parts := strings.SplitN(key, "|", 2)
		var id int64
		fmt.Sscanf(parts[0], "%d", &id)
		dups = append(dups, models.DuplicateBrandPage{BrandID: id, PageURL: parts[1], Count: n})
	}
	return dups, nil
}

func (s *fakeStore) ListSettings(_ context.Context) ([]models.Setting, error) {
	if err := s.fail("ListSettings"); err != nil {
		return nil, err
	}
	var rows []models.Setting
	for k, v := range s.settings {
		rows = append(rows, models.Setting{Key: k, Value: v})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	return rows, nil
}

func (s *fakeStore) ListBrandsWithoutPages(_ context.Context) ([]models.BrandRef, error) {
	if err := s.fail("ListBrandsWithoutPages"); err != nil {
		return nil, err
	}
	var refs []models.BrandRef
	for _, b := range s.brands {
		found := false
		for _, p := range s.pages {
			if p.BrandID == b.ID {
				found = true
				break
			}
		}
		if !found {
			refs = append(refs, models.BrandRef{ID: b.ID, BrandName: b.BrandName})
		}
	}
	return refs, nil
}

func (s *fakeStore) ListBrandPageSummaries(_ context.Context, limit int) ([]*models.BrandPageSummary, error) {
	if err := s.fail("ListBrandPageSummaries"); err != nil {
		return nil, err
	}
	var out []*models.BrandPageSummary
	for _, b := range s.brands {
		if len(out) == limit {
			break
		}
		sum := &models.BrandPageSummary{BrandID: b.ID, BrandName: b.BrandName, Active: b.Active}
		if o, ok := s.overrides[b.ID]; ok {
			sum.UseOverrides = o.UseOverrides
			sum.MaxAdsOverride = o.MaxAdsOverride
			sum.MaxDailyAdsOverride = o.MaxDailyAdsOverride
		}
		for _, p := range s.pages {
			if p.BrandID != b.ID {
				continue
			}
			sum.PageCount++
			if p.IsActive {
				sum.ActivePageCount++
			}
			sum.TotalAdsScraped += int64(p.TotalAdsScraped)
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *fakeStore) DropColumnIfExists(_ context.Context, table, column string) error {
	if err := s.fail("DropColumnIfExists"); err != nil {
		return err
	}
	if s.columns[table][column] {
		s.mutations++
	}
	delete(s.columns[table], column)
	if table == tableBrands {
		for _, b := range s.brands {
			switch column {
			case "page_url":
				b.PageURL = nil
			case "last_scraped_at":
				b.LastScrapedAt = nil
			case "total_ads_scraped":
				b.TotalAdsScraped = 0
			}
		}
	}
	return nil
}

func (s *fakeStore) AddLegacyBrandColumns(_ context.Context) error {
	if err := s.fail("AddLegacyBrandColumns"); err != nil {
		return err
	}
	for _, c := range models.LegacyColumns {
		s.columns[tableBrands][c] = true
	}
	s.mutations++
	return nil
}

func (s *fakeStore) RestoreLegacyBrandFields(_ context.Context, b *models.LegacyBrand) (bool, error) {
	if err := s.fail("RestoreLegacyBrandFields"); err != nil {
		return false, err
	}
	current := s.brandByID(b.ID)
	if current == nil {
		return false, nil
	}
	current.PageURL = b.PageURL
	current.LastScrapedAt = b.LastScrapedAt
	current.TotalAdsScraped = b.TotalAdsScraped
	s.mutations++
	return true, nil
}

func (s *fakeStore) DropTableIfExists(_ context.Context, table string) error {
	if err := s.fail("DropTableIfExists"); err != nil {
		return err
	}
	if !s.tables[table] {
		return nil
	}
	s.mutations++
	delete(s.tables, table)
	switch table {
	case tableBrandPages:
		s.pages = nil
		for _, idx := range BrandPageIndexes {
			delete(s.indexes, idx)
		}
		delete(s.constraints, constraintBrandPageURL)
		delete(s.triggers, triggerBrandPages)
	case tableSettings:
		s.settings = map[string]string{}
		delete(s.triggers, triggerSettings)
	}
	return nil
}

func (s *fakeStore) GetDataMigration(_ context.Context, name string) (*models.DataMigration, error) {
	if err := s.fail("GetDataMigration"); err != nil {
		return nil, err
	}
	if s.marker != nil && s.marker.Name == name {
		return s.marker, nil
	}
	return nil, nil
}

func (s *fakeStore) RecordDataMigration(_ context.Context, m *models.DataMigration) error {
	if err := s.fail("RecordDataMigration"); err != nil {
		return err
	}
	s.marker = m
	s.mutations++
	return nil
}

func (s *fakeStore) DeleteDataMigration(_ context.Context, name string) error {
	if err := s.fail("DeleteDataMigration"); err != nil {
		return err
	}
	if s.marker != nil && s.marker.Name == name {
		s.marker = nil
		s.mutations++
	}
	return nil
}

func (s *fakeStore) TryAdvisoryLock(_ context.Context, _ int64) (bool, func(), error) {
	if err := s.fail("TryAdvisoryLock"); err != nil {
		return false, nil, err
	}
	if s.locked {
		return false, nil, nil
	}
	s.locked = true
	return true, func() { s.locked = false }, nil
}

var _ Store = (*fakeStore)(nil)
