package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Schema introspection and DDL helpers. Table and column names are always
// passed through pgx.Identifier; only values travel as parameters.

// TableExists reports whether a table exists in the current schema.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)
	`, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return exists, nil
}

// ColumnExists reports whether table has the named column.
func (db *DB) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		)
	`, table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

// IndexExists reports whether the named index exists in the current schema.
func (db *DB) IndexExists(ctx context.Context, index string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = current_schema() AND indexname = $1
		)
	`, index).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", index, err)
	}
	return exists, nil
}

// ConstraintExists reports whether table has the named constraint.
func (db *DB) ConstraintExists(ctx context.Context, table, constraint string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_schema = current_schema() AND table_name = $1 AND constraint_name = $2
		)
	`, table, constraint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check constraint %s: %w", constraint, err)
	}
	return exists, nil
}

// TriggerExists reports whether table has the named trigger.
func (db *DB) TriggerExists(ctx context.Context, table, trigger string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.triggers
			WHERE event_object_schema = current_schema()
			  AND event_object_table = $1 AND trigger_name = $2
		)
	`, table, trigger).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check trigger %s: %w", trigger, err)
	}
	return exists, nil
}

// CountRows returns the number of rows in table.
func (db *DB) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM "+pgx.Identifier{table}.Sanitize(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// ExportTable returns every row of table as a JSON object, ordered by id.
func (db *DB) ExportTable(ctx context.Context, table string) ([]json.RawMessage, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT to_jsonb(t) FROM "+pgx.Identifier{table}.Sanitize()+" t ORDER BY t.id",
	)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", table, err)
	}
	defer rows.Close()

	result := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		result = append(result, json.RawMessage(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", table, err)
	}

	return result, nil
}

// ExecStatements runs the statements in order inside one transaction.
func (db *DB) ExecStatements(ctx context.Context, statements []string) error {
	return db.ExecTx(ctx, func(tx pgx.Tx) error {
		for i, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}

// DropColumnIfExists drops column from table when present.
func (db *DB) DropColumnIfExists(ctx context.Context, table, column string) error {
	_, err := db.Pool.Exec(ctx, fmt.Sprintf(
		"ALTER TABLE %s DROP COLUMN IF EXISTS %s",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize(),
	))
	if err != nil {
		return fmt.Errorf("drop column %s.%s: %w", table, column, err)
	}
	return nil
}

// DropTableIfExists drops table and everything depending on it.
func (db *DB) DropTableIfExists(ctx context.Context, table string) error {
	_, err := db.Pool.Exec(ctx, "DROP TABLE IF EXISTS "+pgx.Identifier{table}.Sanitize()+" CASCADE")
	if err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}
