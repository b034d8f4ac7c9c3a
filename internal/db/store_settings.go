package db

import (
	"context"
	"fmt"

	"github.com/adintel/adintel/internal/models"
)

// Settings methods

// ListSettings returns every settings row ordered by key.
func (db *DB) ListSettings(ctx context.Context) ([]models.Setting, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT key, value, updated_at
		FROM settings
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []models.Setting
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// InsertSettingIfAbsent inserts key with value unless the key already exists.
// It reports whether a row was inserted.
func (db *DB) InsertSettingIfAbsent(ctx context.Context, key, value string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`, key, value)
	if err != nil {
		return false, fmt.Errorf("seed setting %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetSetting creates or overwrites a setting. It is a test-support helper;
// the migration only seeds missing keys with InsertSettingIfAbsent.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
