package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/logwarden/logwarden/internal/models"
)

// EventStorage is the ingest event archive. It is separate from Storage
// because the archive is append-heavy with no point reads, which suits
// a columnar store rather than SQLite.
type EventStorage interface {
	// Open initializes the archive connection.
	Open() error
	// Close closes the archive connection.
	Close() error
	// Migrate creates or updates the archive schema.
	Migrate() error
	// Ping checks the connection health.
	Ping(ctx context.Context) error

	// Events returns the event repository.
	Events() EventRepository
}

// EventRepository defines archive append operations.
type EventRepository interface {
	// InsertBatch appends multiple ingest events in a single batch.
	InsertBatch(ctx context.Context, events []*models.IngestEvent) error
}

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Addresses     []string      // server addresses (host:port)
	Database      string        // database name
	Username      string        // auth username
	Password      string        // auth password
	MaxOpenConns  int           // connection pool cap
	MaxIdleConns  int           // idle connections kept
	DialTimeout   time.Duration // connect timeout
	Compression   bool          // enable LZ4 on the wire
	RetentionDays int           // event TTL in days
}

func (c *ClickHouseConfig) withDefaults() *ClickHouseConfig {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 5
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.RetentionDays == 0 {
		c.RetentionDays = 30
	}
	return c
}

func (c *ClickHouseConfig) options() *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: c.Addresses,
		Auth: clickhouse.Auth{
			Database: c.Database,
			Username: c.Username,
			Password: c.Password,
		},
		DialTimeout:  c.DialTimeout,
		MaxOpenConns: c.MaxOpenConns,
		MaxIdleConns: c.MaxIdleConns,
	}
	if c.Compression {
		opts.Compression = &clickhouse.Compression{Method: clickhouse.CompressionLZ4}
	}
	return opts
}

// ClickHouseStorage implements EventStorage for ClickHouse.
type ClickHouseStorage struct {
	config *ClickHouseConfig
	db     *sql.DB
	events *clickhouseEventRepo
}

// NewClickHouseStorage creates a ClickHouse-backed event archive.
func NewClickHouseStorage(config *ClickHouseConfig) *ClickHouseStorage {
	return &ClickHouseStorage{config: config.withDefaults()}
}

// Open connects and verifies the server is reachable.
func (s *ClickHouseStorage) Open() error {
	db := clickhouse.OpenDB(s.config.options())

	ctx, cancel := context.WithTimeout(context.Background(), s.config.DialTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping clickhouse: %w", err)
	}

	s.db = db
	s.events = &clickhouseEventRepo{db: db}
	return nil
}

// Close closes the database connection.
func (s *ClickHouseStorage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// eventsDDL is the archive table. Monthly partitions plus a row TTL keep
// the archive bounded without an external reaper.
const eventsDDL = `
	CREATE TABLE IF NOT EXISTS ingest_events (
		id UUID DEFAULT generateUUIDv4(),
		received_at DateTime64(3, 'UTC'),
		remote String,
		log_source String,
		matched UInt8,
		findings String,
		excerpt String,
		_date Date DEFAULT toDate(received_at)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(_date)
	ORDER BY (log_source, received_at, id)
	TTL _date + INTERVAL %d DAY DELETE
	SETTINGS index_granularity = 8192
`

// Migrate creates the ingest_events table and its skip indexes.
func (s *ClickHouseStorage) Migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ddl := fmt.Sprintf(eventsDDL, s.config.RetentionDays)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create ingest_events table: %w", err)
	}

	// Older servers may lack these index types; the archive works
	// without them, just with slower excerpt searches.
	skipIndexes := map[string]string{
		"idx_excerpt": "ALTER TABLE ingest_events ADD INDEX IF NOT EXISTS idx_excerpt excerpt TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 4",
		"idx_source":  "ALTER TABLE ingest_events ADD INDEX IF NOT EXISTS idx_source log_source TYPE bloom_filter(0.01) GRANULARITY 4",
	}
	for name, stmt := range skipIndexes {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			log.Printf("warning: skip index %s not created: %v", name, err)
		}
	}

	return nil
}

// Ping checks the connection health.
func (s *ClickHouseStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Events returns the event repository.
func (s *ClickHouseStorage) Events() EventRepository {
	return s.events
}

type clickhouseEventRepo struct {
	db *sql.DB
}

// InsertBatch appends events in one prepared-statement transaction,
// which the clickhouse driver turns into a native batch.
func (r *clickhouseEventRepo) InsertBatch(ctx context.Context, events []*models.IngestEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ingest_events (
			id, received_at, remote, log_source, matched, findings, excerpt
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		id := ev.ID
		if id == "" {
			id = uuid.New().String()
		}
		findingsJSON, _ := json.Marshal(ev.Findings)

		if _, err := stmt.ExecContext(ctx,
			id, ev.ReceivedAt, ev.Remote, ev.LogSource,
			boolToUInt8(ev.Matched), string(findingsJSON), ev.Excerpt,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event batch: %w", err)
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
