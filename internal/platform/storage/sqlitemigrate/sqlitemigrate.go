// Package sqlitemigrate applies embedded SQL migrations to a SQLite
// database. Migration files live at the root of the provided fs.FS,
// are applied in lexical filename order, and each applied file is
// recorded in a schema_migrations table so reruns are no-ops.
package sqlitemigrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const upMarker = "-- +migrate Up"

const downMarker = "-- +migrate Down"

// ApplyMigrations runs every pending .sql migration in migrationFS
// against db. Each migration executes inside its own transaction; a
// failed migration is rolled back and left unrecorded so it runs
// again on the next attempt.
func ApplyMigrations(db *sql.DB, migrationFS fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	names, err := migrationNames(migrationFS)
	if err != nil {
		return err
	}

	for _, name := range names {
		applied, err := migrationApplied(db, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		raw, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		stmts := ExtractUpMigration(string(raw))
		if strings.TrimSpace(stmts) == "" {
			return fmt.Errorf("migration %s has no up statements", name)
		}

		if err := applyMigration(db, name, stmts); err != nil {
			return err
		}
	}

	return nil
}

func migrationNames(migrationFS fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func migrationApplied(db *sql.DB, name string) (bool, error) {
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE name = ?", name)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	return count > 0, nil
}

func applyMigration(db *sql.DB, name, stmts string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}

	if _, err := tx.Exec(stmts); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply migration %s: %w", name, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (name) VALUES (?)", name); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}

	return nil
}

// ExtractUpMigration returns the statements between the up and down
// markers. Files without markers are treated as up-only migrations.
func ExtractUpMigration(raw string) string {
	upIdx := strings.Index(raw, upMarker)
	if upIdx < 0 {
		return raw
	}

	body := raw[upIdx+len(upMarker):]
	if downIdx := strings.Index(body, downMarker); downIdx >= 0 {
		body = body[:downIdx]
	}
	return body
}
