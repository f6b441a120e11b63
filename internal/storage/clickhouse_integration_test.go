//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/logwarden/logwarden/internal/models"
)

// Integration tests require running ClickHouse.
// Run with: go test -tags=integration ./internal/storage/...

func setupClickHouseTest(t *testing.T) (*ClickHouseStorage, func()) {
	t.Helper()

	config := &ClickHouseConfig{
		Addresses:     []string{"localhost:9000"},
		Database:      "logwarden_test",
		Username:      "default",
		Password:      "",
		RetentionDays: 1,
	}

	store := NewClickHouseStorage(config)
	if err := store.Open(); err != nil {
		t.Skipf("clickhouse not available: %v", err)
	}

	if err := store.Migrate(); err != nil {
		store.Close()
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		store.db.ExecContext(ctx, "TRUNCATE TABLE ingest_events")
		store.Close()
	}

	return store, cleanup
}

func TestClickHouse_InsertBatch(t *testing.T) {
	store, cleanup := setupClickHouseTest(t)
	defer cleanup()
	ctx := context.Background()

	events := []*models.IngestEvent{
		{
			ID:         uuid.New().String(),
			ReceivedAt: time.Now().UTC(),
			Remote:     "192.0.2.1:51000",
			LogSource:  "203.0.113.45",
			Matched:    true,
			Findings:   []models.RuleID{models.RuleFailedLogin},
			Excerpt:    "failed login for alice",
		},
		{
			ID:         uuid.New().String(),
			ReceivedAt: time.Now().UTC(),
			Remote:     "192.0.2.2:51001",
			LogSource:  "unknown",
			Matched:    false,
			Findings:   nil,
			Excerpt:    "nightly backup completed",
		},
	}

	if err := store.Events().InsertBatch(ctx, events); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	var count int64
	err := store.db.QueryRowContext(ctx, "SELECT count() FROM ingest_events").Scan(&count)
	if err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestClickHouse_Ping(t *testing.T) {
	store, cleanup := setupClickHouseTest(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
