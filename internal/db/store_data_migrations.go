package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/adintel/adintel/internal/models"
	"github.com/jackc/pgx/v5"
)

// Data migration marker methods

// GetDataMigration returns the marker for name, or nil if the migration has
// not been recorded. A missing data_migrations table counts as not recorded.
func (db *DB) GetDataMigration(ctx context.Context, name string) (*models.DataMigration, error) {
	var present bool
	if err := db.Pool.QueryRow(ctx,
		"SELECT to_regclass('data_migrations') IS NOT NULL",
	).Scan(&present); err != nil {
		return nil, fmt.Errorf("check data_migrations table: %w", err)
	}
	if !present {
		return nil, nil
	}

	var m models.DataMigration
	var details []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT name, applied_at, details
		FROM data_migrations
		WHERE name = $1
	`, name).Scan(&m.Name, &m.AppliedAt, &details)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get data migration %s: %w", name, err)
	}
	m.Details = details

	return &m, nil
}

// RecordDataMigration stores or refreshes the marker.
func (db *DB) RecordDataMigration(ctx context.Context, m *models.DataMigration) error {
	if _, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS data_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			details JSONB
		)
	`); err != nil {
		return fmt.Errorf("create data_migrations table: %w", err)
	}

	var details []byte
	if len(m.Details) > 0 {
		details = m.Details
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO data_migrations (name, applied_at, details)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET applied_at = EXCLUDED.applied_at, details = EXCLUDED.details
	`, m.Name, m.AppliedAt, details)
	if err != nil {
		return fmt.Errorf("record data migration %s: %w", m.Name, err)
	}
	return nil
}

// DeleteDataMigration removes the marker for name if present.
func (db *DB) DeleteDataMigration(ctx context.Context, name string) error {
	var present bool
	if err := db.Pool.QueryRow(ctx,
		"SELECT to_regclass('data_migrations') IS NOT NULL",
	).Scan(&present); err != nil {
		return fmt.Errorf("check data_migrations table: %w", err)
	}
	if !present {
		return nil
	}
	if _, err := db.Pool.Exec(ctx, "DELETE FROM data_migrations WHERE name = $1", name); err != nil {
		return fmt.Errorf("delete data migration %s: %w", name, err)
	}
	return nil
}
