package pagemigration

import (
	"context"
	"testing"
	"time"

	"github.com/adintel/adintel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// migratableStore returns a legacy store with the new schema applied but the
// legacy columns still in place, the state the Copier runs in.
func migratableStore(brands ...*models.LegacyBrand) *fakeStore {
	s := newLegacyStore(brands...)
	s.applySchema()
	return s
}

func TestCopier_NikeScenario(t *testing.T) {
	scraped := time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)
	nike := legacyBrand(1, "Nike", "https://facebook.com/nike")
	nike.LastScrapedAt = &scraped
	nike.TotalAdsScraped = 42

	s := migratableStore(nike)
	res, err := NewCopier(s, testLogger()).Migrate(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Migrated)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 1, res.Total)

	require.Len(t, s.pages, 1)
	page := s.pages[0]
	assert.Equal(t, int64(1), page.BrandID)
	assert.Equal(t, "https://facebook.com/nike", page.PageURL)
	assert.True(t, page.IsActive)
	require.NotNil(t, page.LastScrapedAt)
	assert.True(t, scraped.Equal(*page.LastScrapedAt))
	assert.Equal(t, 42, page.TotalAdsScraped)
	assert.Nil(t, page.PageName)
}

func TestCopier_InheritsInactive(t *testing.T) {
	b := legacyBrand(3, "Adidas", "https://facebook.com/adidas")
	b.Active = false

	s := migratableStore(b)
	_, err := NewCopier(s, testLogger()).Migrate(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, s.pages, 1)
	assert.False(t, s.pages[0].IsActive)
}

func TestCopier_NullAndBlankPageURL(t *testing.T) {
	s := migratableStore(
		legacyBrand(1, "Nike", "https://facebook.com/nike"),
		legacyBrand(2, "NoPage", ""),
		legacyBrand(3, "Blank", "   "),
	)

	res, err := NewCopier(s, testLogger()).Migrate(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Migrated)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, s.pages, 1)
	assert.Equal(t, int64(1), s.pages[0].BrandID)
}

func TestCopier_Idempotent(t *testing.T) {
	s := migratableStore(
		legacyBrand(1, "Nike", "https://facebook.com/nike"),
		legacyBrand(2, "Puma", "https://facebook.com/puma"),
	)
	c := NewCopier(s, testLogger())

	first, err := c.Migrate(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Migrated)

	second, err := c.Migrate(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Migrated)
	assert.Equal(t, second.Total, second.Skipped)
	assert.Len(t, s.pages, 2)
}

func TestCopier_ResumesAfterFailure(t *testing.T) {
	s := migratableStore(
		legacyBrand(1, "Nike", "https://facebook.com/nike"),
		legacyBrand(2, "Puma", "https://facebook.com/puma"),
		legacyBrand(3, "Reebok", "https://facebook.com/reebok"),
	)
	s.failCreateFor = 2
	c := NewCopier(s, testLogger())

	res, err := c.Migrate(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)
	assert.Contains(t, err.Error(), `"Puma"`)
	assert.Equal(t, 1, res.Migrated)
	assert.Len(t, s.pages, 1, "rows copied before the failure stay committed")

	s.failCreateFor = 0
	res, err = c.Migrate(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Migrated)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, s.pages, 3)
}

func TestCopier_ProcessesInIDOrder(t *testing.T) {
	s := migratableStore(
		legacyBrand(5, "E", "https://facebook.com/e"),
		legacyBrand(2, "B", "https://facebook.com/b"),
		legacyBrand(9, "I", "https://facebook.com/i"),
	)

	res, err := NewCopier(s, testLogger()).Migrate(context.Background(), false)
	require.NoError(t, err)

	var ids []int64
	for _, p := range s.pages {
		ids = append(ids, p.BrandID)
	}
	assert.Equal(t, []int64{2, 5, 9}, ids)
	require.Len(t, res.Candidates, 3)
	assert.Equal(t, int64(2), res.Candidates[0].ID)
}

func TestCopier_DryRun(t *testing.T) {
	t.Run("before schema exists", func(t *testing.T) {
		s := newLegacyStore(legacyBrand(1, "Nike", "https://facebook.com/nike"))

		res, err := NewCopier(s, testLogger()).Migrate(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Migrated)
		assert.Empty(t, s.pages)
		assert.Zero(t, s.mutations)
	})

	t.Run("partial previous run", func(t *testing.T) {
		s := migratableStore(
			legacyBrand(1, "Nike", "https://facebook.com/nike"),
			legacyBrand(2, "Puma", "https://facebook.com/puma"),
		)
		s.pages = []*models.BrandPage{{ID: 1, BrandID: 1, PageURL: "https://facebook.com/nike"}}

		res, err := NewCopier(s, testLogger()).Migrate(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Migrated)
		assert.Equal(t, 1, res.Skipped)
		assert.Len(t, s.pages, 1)
		assert.Zero(t, s.mutations)
	})
}

func TestCopier_PageURLColumnGone(t *testing.T) {
	s := newMigratedStore()

	res, err := NewCopier(s, testLogger()).Migrate(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, CopyResult{}, res)
}

func TestCopier_Confirm(t *testing.T) {
	nike := legacyBrand(1, "Nike", "https://facebook.com/nike")
	puma := legacyBrand(2, "Puma", "https://facebook.com/puma")

	t.Run("passes after copy", func(t *testing.T) {
		s := migratableStore(nike, puma)
		c := NewCopier(s, testLogger())
		res, err := c.Migrate(context.Background(), false)
		require.NoError(t, err)

		assert.NoError(t, c.Confirm(context.Background(), res.Candidates))
	})

	t.Run("missing page", func(t *testing.T) {
		s := migratableStore(nike, puma)
		err := NewCopier(s, testLogger()).Confirm(context.Background(), []*models.LegacyBrand{nike})
		require.ErrorIs(t, err, ErrVerificationFailed)
		assert.Contains(t, err.Error(), "Nike (id 1)")
	})

	t.Run("orphan page", func(t *testing.T) {
		s := migratableStore(nike)
		s.pages = []*models.BrandPage{
			{ID: 1, BrandID: 1, PageURL: "https://facebook.com/nike"},
			{ID: 2, BrandID: 99, PageURL: "https://facebook.com/ghost"},
		}
		err := NewCopier(s, testLogger()).Confirm(context.Background(), []*models.LegacyBrand{nike})
		require.ErrorIs(t, err, ErrVerificationFailed)
		assert.Contains(t, err.Error(), "1 orphaned")
	})

	t.Run("duplicate pair", func(t *testing.T) {
		s := migratableStore(nike)
		s.pages = []*models.BrandPage{
			{ID: 1, BrandID: 1, PageURL: "https://facebook.com/nike"},
			{ID: 2, BrandID: 1, PageURL: "https://facebook.com/nike"},
		}
		err := NewCopier(s, testLogger()).Confirm(context.Background(), []*models.LegacyBrand{nike})
		require.ErrorIs(t, err, ErrVerificationFailed)
		assert.Contains(t, err.Error(), "duplicate")
	})
}
