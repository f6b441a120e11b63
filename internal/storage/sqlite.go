package storage

import (
	"context"
	"database/sql"
	"fmt"

	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied on open. WAL lets the single writer coexist
// with readers; busy_timeout covers the handoff between them.
var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	path string
	db   *sql.DB

	incidents *sqliteIncidentRepo
	counters  *sqliteCounterRepo
}

// NewSQLiteStorage creates a storage handle for the database at path.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// Open connects, tunes the pool for SQLite's single-writer model, and
// applies the session pragmas.
func (s *SQLiteStorage) Open() error {
	if s.path == "" {
		return fmt.Errorf("database path is required")
	}

	// _time_format stores time.Time values in SQLite's datetime text
	// layout; all binds are normalized to UTC so text comparison orders
	// correctly.
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_time_format=sqlite", s.path))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	s.db = db
	s.incidents = &sqliteIncidentRepo{db: db}
	s.counters = &sqliteCounterRepo{db: db}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying connection for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Migrate runs database migrations.
func (s *SQLiteStorage) Migrate() error {
	return runMigrations(s.db)
}

// Incidents returns the incident repository.
func (s *SQLiteStorage) Incidents() IncidentRepository {
	return s.incidents
}

// Counters returns the attempt counter repository.
func (s *SQLiteStorage) Counters() CounterRepository {
	return s.counters
}
