// Package pagemigration moves each brand's legacy page_url into the
// brand_pages table and verifies the result.
package pagemigration

import (
	"context"
	"encoding/json"

	"github.com/adintel/adintel/internal/models"
)

// MarkerName identifies the page migration in the data_migrations table.
const MarkerName = "multi_pages"

// Table and object names touched by the migration.
const (
	tableBrands     = "brands"
	tableBrandPages = "brand_pages"
	tableSettings   = "settings"

	columnPageURL = "page_url"

	constraintBrandPageURL = "brand_pages_brand_id_page_url_key"
	triggerBrandPages      = "update_brand_pages_updated_at"
	triggerSettings        = "update_settings_updated_at"
)

// BrandPageIndexes are the indexes created on brand_pages.
var BrandPageIndexes = []string{
	"idx_brand_pages_brand_id",
	"idx_brand_pages_is_active",
	"idx_brand_pages_last_scraped_at",
}

// SchemaInspector answers questions about the live schema.
type SchemaInspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	IndexExists(ctx context.Context, index string) (bool, error)
	ConstraintExists(ctx context.Context, table, constraint string) (bool, error)
	TriggerExists(ctx context.Context, table, trigger string) (bool, error)
	CountRows(ctx context.Context, table string) (int64, error)
}

// MarkerStore persists completion markers of data migrations.
type MarkerStore interface {
	GetDataMigration(ctx context.Context, name string) (*models.DataMigration, error)
	RecordDataMigration(ctx context.Context, m *models.DataMigration) error
	DeleteDataMigration(ctx context.Context, name string) error
}

// GuardStore is what the Guard reads.
type GuardStore interface {
	SchemaInspector
	GetDataMigration(ctx context.Context, name string) (*models.DataMigration, error)
}

// BackupStore is what the Backup reads.
type BackupStore interface {
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	CountRows(ctx context.Context, table string) (int64, error)
	ExportTable(ctx context.Context, table string) ([]json.RawMessage, error)
}

// SchemaStore is what the SchemaApplier writes to.
type SchemaStore interface {
	ExecStatements(ctx context.Context, statements []string) error
	InsertSettingIfAbsent(ctx context.Context, key, value string) (bool, error)
}

// CopyStore is what the Copier reads and writes.
type CopyStore interface {
	TableExists(ctx context.Context, table string) (bool, error)
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	ListPageCandidates(ctx context.Context) ([]*models.LegacyBrand, error)
	BrandPageExists(ctx context.Context, brandID int64, pageURL string) (bool, error)
	CreateBrandPage(ctx context.Context, p *models.BrandPage) error
	CountOrphanBrandPages(ctx context.Context) (int64, error)
	ListDuplicateBrandPages(ctx context.Context) ([]models.DuplicateBrandPage, error)
}

// VerifyStore is what the Verifier reads.
type VerifyStore interface {
	SchemaInspector
	ListSettings(ctx context.Context) ([]models.Setting, error)
	CountOrphanBrandPages(ctx context.Context) (int64, error)
	ListDuplicateBrandPages(ctx context.Context) ([]models.DuplicateBrandPage, error)
	ListBrandsWithoutPages(ctx context.Context) ([]models.BrandRef, error)
	ListBrandPageSummaries(ctx context.Context, limit int) ([]*models.BrandPageSummary, error)
}

// CleanupStore is what Cleanup writes to.
type CleanupStore interface {
	ColumnExists(ctx context.Context, table, column string) (bool, error)
	DropColumnIfExists(ctx context.Context, table, column string) error
}

// RestoreStore is what the Restorer reads and writes.
type RestoreStore interface {
	AddLegacyBrandColumns(ctx context.Context) error
	RestoreLegacyBrandFields(ctx context.Context, b *models.LegacyBrand) (bool, error)
	DropTableIfExists(ctx context.Context, table string) error
	DropColumnIfExists(ctx context.Context, table, column string) error
	DeleteDataMigration(ctx context.Context, name string) error
}

// Locker provides session-level mutual exclusion.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (acquired bool, release func(), err error)
}

// Store is everything the page migration needs from the database.
type Store interface {
	GuardStore
	MarkerStore
	BackupStore
	SchemaStore
	CopyStore
	VerifyStore
	CleanupStore
	RestoreStore
	Locker
}
