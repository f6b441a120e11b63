package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// migration is one schema step. Steps run in order, each inside its own
// transaction, and are recorded in schema_migrations so reopening a
// database only applies what is new.
type migration struct {
	version int
	name    string
	up      string
}

var schema = []migration{
	{
		version: 1,
		name:    "initial_schema",
		up: `
			-- Incident records (insert-only)
			CREATE TABLE IF NOT EXISTS incidents (
				id TEXT PRIMARY KEY,
				created_at DATETIME NOT NULL,
				log_source TEXT NOT NULL,
				findings_json TEXT NOT NULL,
				severity TEXT NOT NULL,
				message_excerpt TEXT NOT NULL,
				evidence_path TEXT,
				meta_json TEXT
			);

			-- Per-source attempt counters keyed by source and window start
			CREATE TABLE IF NOT EXISTS attempt_counters (
				counter_key TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				window_start DATETIME NOT NULL,
				count INTEGER NOT NULL DEFAULT 0,
				first_seen DATETIME NOT NULL,
				last_seen DATETIME NOT NULL
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at);
			CREATE INDEX IF NOT EXISTS idx_incidents_source ON incidents(log_source);
			CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);
			CREATE INDEX IF NOT EXISTS idx_counters_source ON attempt_counters(source);
			CREATE INDEX IF NOT EXISTS idx_counters_window ON attempt_counters(window_start);
		`,
	},
}

// runMigrations brings the database up to the latest schema version.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := schemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range schema {
		if m.version <= current {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.up); err != nil {
		return fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
		m.version, m.name, time.Now(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.version, err)
	}
	return nil
}
