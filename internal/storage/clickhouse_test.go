package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/logwarden/logwarden/internal/models"
)

// Unit tests (no ClickHouse required)

func TestClickHouseConfig_Defaults(t *testing.T) {
	store := NewClickHouseStorage(&ClickHouseConfig{
		Addresses: []string{"localhost:9000"},
	})

	if store.config.MaxOpenConns != 5 {
		t.Errorf("expected MaxOpenConns 5, got %d", store.config.MaxOpenConns)
	}
	if store.config.DialTimeout != 5*time.Second {
		t.Errorf("expected DialTimeout 5s, got %v", store.config.DialTimeout)
	}
	if store.config.RetentionDays != 30 {
		t.Errorf("expected RetentionDays 30, got %d", store.config.RetentionDays)
	}
}

// EventBuffer unit tests

func TestEventBuffer_AddBatch(t *testing.T) {
	mock := &mockEventRepo{}

	config := &EventBufferConfig{
		BatchSize:     3,
		FlushInterval: time.Hour, // Long interval so timer doesn't trigger
		MaxSize:       100,
	}

	buffer := NewEventBuffer(mock, config)
	defer buffer.Close()

	// Add events below batch size
	err := buffer.AddBatch([]*models.IngestEvent{
		{ID: "1", Excerpt: "test1"},
		{ID: "2", Excerpt: "test2"},
	})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	// Should not have flushed yet
	if mock.insertBatchCalls != 0 {
		t.Errorf("expected 0 insertBatch calls, got %d", mock.insertBatchCalls)
	}

	// Add more to trigger batch size
	err = buffer.AddBatch([]*models.IngestEvent{
		{ID: "3", Excerpt: "test3"},
	})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	// Should have flushed
	if mock.insertBatchCalls != 1 {
		t.Errorf("expected 1 insertBatch call, got %d", mock.insertBatchCalls)
	}
	if mock.lastBatchSize != 3 {
		t.Errorf("expected batch size 3, got %d", mock.lastBatchSize)
	}
}

func TestEventBuffer_Flush(t *testing.T) {
	mock := &mockEventRepo{}

	config := &EventBufferConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		MaxSize:       100,
	}

	buffer := NewEventBuffer(mock, config)
	defer buffer.Close()

	buffer.Add(&models.IngestEvent{ID: "1", Excerpt: "test1"})

	// Manual flush
	if err := buffer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if mock.insertBatchCalls != 1 {
		t.Errorf("expected 1 insertBatch call, got %d", mock.insertBatchCalls)
	}
}

func TestEventBuffer_Backpressure(t *testing.T) {
	mock := &mockEventRepo{}

	config := &EventBufferConfig{
		BatchSize:     10,
		FlushInterval: time.Hour,
		MaxSize:       5, // Small max size to test backpressure
	}

	buffer := NewEventBuffer(mock, config)
	defer buffer.Close()

	events := make([]*models.IngestEvent, 10)
	for i := 0; i < 10; i++ {
		events[i] = &models.IngestEvent{ID: fmt.Sprintf("%d", i), Excerpt: "test"}
	}

	if err := buffer.AddBatch(events); err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	stats := buffer.Stats()
	if stats.Dropped == 0 {
		t.Error("expected some events to be dropped")
	}
}

func TestEventBuffer_RequeueOnError(t *testing.T) {
	mock := &mockEventRepo{insertBatchErr: errors.New("archive down")}

	config := &EventBufferConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		MaxSize:       100,
	}

	buffer := NewEventBuffer(mock, config)

	buffer.Add(&models.IngestEvent{ID: "1", Excerpt: "test1"})

	if err := buffer.Flush(); err == nil {
		t.Fatal("expected flush error, got nil")
	}

	// Events go back on the buffer for the next flush
	stats := buffer.Stats()
	if stats.Pending != 1 {
		t.Errorf("expected 1 pending event after failed flush, got %d", stats.Pending)
	}
	if stats.Inserted != 0 {
		t.Errorf("expected 0 inserted, got %d", stats.Inserted)
	}

	// Once the archive recovers, the retried flush succeeds
	mock.insertBatchErr = nil
	if err := buffer.Flush(); err != nil {
		t.Fatalf("retry flush failed: %v", err)
	}
	stats = buffer.Stats()
	if stats.Inserted != 1 {
		t.Errorf("expected 1 inserted after retry, got %d", stats.Inserted)
	}

	buffer.Close()
}

func TestEventBuffer_Stats(t *testing.T) {
	mock := &mockEventRepo{}

	config := &EventBufferConfig{
		BatchSize:     2,
		FlushInterval: time.Hour,
		MaxSize:       100,
	}

	buffer := NewEventBuffer(mock, config)
	defer buffer.Close()

	// Add events to trigger flush
	buffer.AddBatch([]*models.IngestEvent{
		{ID: "1", Excerpt: "test1"},
		{ID: "2", Excerpt: "test2"},
	})

	stats := buffer.Stats()
	if stats.Flushed != 1 {
		t.Errorf("expected 1 flush, got %d", stats.Flushed)
	}
	if stats.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", stats.Inserted)
	}
}

func TestEventBuffer_CloseFlushes(t *testing.T) {
	mock := &mockEventRepo{}

	config := &EventBufferConfig{
		BatchSize:     100,
		FlushInterval: time.Hour,
		MaxSize:       100,
	}

	buffer := NewEventBuffer(mock, config)
	buffer.Add(&models.IngestEvent{ID: "1", Excerpt: "test1"})

	if err := buffer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if mock.insertBatchCalls != 1 {
		t.Errorf("expected final flush on close, got %d calls", mock.insertBatchCalls)
	}

	// Adds after close are ignored
	buffer.Add(&models.IngestEvent{ID: "2", Excerpt: "test2"})
	if buffer.Stats().Pending != 0 {
		t.Error("expected adds after close to be dropped")
	}
}

// Mock repository for testing
type mockEventRepo struct {
	insertBatchCalls int
	lastBatchSize    int
	insertBatchErr   error
}

func (m *mockEventRepo) InsertBatch(ctx context.Context, events []*models.IngestEvent) error {
	m.insertBatchCalls++
	m.lastBatchSize = len(events)
	return m.insertBatchErr
}
