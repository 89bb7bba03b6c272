// Package sqlitemigrate applies the embedded journal schema migrations
// to a SQLite database, at most once per file.
//
// Applied migrations are recorded in a ledger table keyed by file name,
// so reopening a store replays nothing. A migration that fails leaves no
// ledger row and the next open retries it.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ledgerTable = "waymark_migrations"

// ApplyMigrations runs every .sql file under migrationRoot in name order,
// skipping files already recorded in the ledger. Files carry their
// forward statements in a "-- +migrate Up" section; anything after a
// "-- +migrate Down" marker is ignored.
func ApplyMigrations(sqlDB *sql.DB, migrationFS fs.FS, migrationRoot string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}

	root := strings.TrimSpace(migrationRoot)
	if root == "" {
		root = "."
	}

	names, err := migrationNames(migrationFS, root)
	if err != nil {
		return err
	}
	if err := ensureLedger(sqlDB); err != nil {
		return err
	}

	for _, name := range names {
		key := name
		if root != "." {
			key = filepath.ToSlash(filepath.Join(root, name))
		}

		done, err := alreadyApplied(sqlDB, key)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if done {
			continue
		}

		content, err := fs.ReadFile(migrationFS, filepath.Join(root, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyOne(sqlDB, key, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}

	return nil
}

func migrationNames(migrationFS fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, root)
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

func ensureLedger(sqlDB *sql.DB) error {
	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, ledgerTable)
	if _, err := sqlDB.Exec(createSQL); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

func alreadyApplied(sqlDB *sql.DB, key string) (bool, error) {
	var found int
	row := sqlDB.QueryRow("SELECT 1 FROM "+ledgerTable+" WHERE name = ?", key)
	switch err := row.Scan(&found); {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// applyOne executes a migration's forward section and records the ledger
// row in the same transaction, so a failed statement stays unrecorded.
func applyOne(sqlDB *sql.DB, key, content string) error {
	forward := strings.TrimSpace(upSection(content))
	if forward == "" {
		return nil
	}

	tx, err := sqlDB.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.Exec(forward); err != nil {
		if !isIdempotentDDLError(err) {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(
		fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", ledgerTable),
		key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record ledger row: %w", err)
	}
	return tx.Commit()
}

func upSection(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(rest, "-- +migrate Down"); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}

// isIdempotentDDLError reports DDL failures that mean the schema object
// is already in place, which counts as success for re-entrant opens.
func isIdempotentDDLError(err error) bool {
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}
