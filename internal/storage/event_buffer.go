package storage

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/logwarden/logwarden/internal/metrics"
	"github.com/logwarden/logwarden/internal/models"
)

// flushTimeout bounds a single archive insert so a stalled ClickHouse
// cannot wedge the flush loop.
const flushTimeout = 30 * time.Second

// EventBufferConfig holds EventBuffer configuration.
type EventBufferConfig struct {
	BatchSize     int           // events per flush trigger
	FlushInterval time.Duration // time-based flush trigger
	MaxSize       int           // hard cap; oldest events drop beyond it
}

// EventBuffer accumulates ingest events and writes them to the archive
// in batches, flushing on size or interval. When the archive falls
// behind, the oldest events are dropped rather than blocking callers;
// the archive must never sit on the request path.
type EventBuffer struct {
	repo     EventRepository
	flushAt  int
	interval time.Duration
	maxQueue int

	mu     sync.Mutex
	queue  []*models.IngestEvent
	stopCh chan struct{}
	doneCh chan struct{}

	stopped  atomic.Bool
	dropped  atomic.Int64
	flushed  atomic.Int64
	inserted atomic.Int64
}

// NewEventBuffer starts a buffer over repo. Zero config fields take the
// defaults 500 events, 5s, 50000 cap.
func NewEventBuffer(repo EventRepository, config *EventBufferConfig) *EventBuffer {
	if config.BatchSize == 0 {
		config.BatchSize = 500
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = 5 * time.Second
	}
	if config.MaxSize == 0 {
		config.MaxSize = 50000
	}

	b := &EventBuffer{
		repo:     repo,
		flushAt:  config.BatchSize,
		interval: config.FlushInterval,
		maxQueue: config.MaxSize,
		queue:    make([]*models.IngestEvent, 0, config.BatchSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go b.run()
	return b
}

// Add queues a single event.
func (b *EventBuffer) Add(event *models.IngestEvent) error {
	return b.AddBatch([]*models.IngestEvent{event})
}

// AddBatch queues events, evicting the oldest queued entries if the cap
// would be exceeded, then flushes when the batch threshold is reached.
func (b *EventBuffer) AddBatch(events []*models.IngestEvent) error {
	if b.stopped.Load() {
		return nil
	}

	b.mu.Lock()
	if over := len(b.queue) + len(events) - b.maxQueue; over > 0 {
		events = b.evict(over, events)
	}
	b.queue = append(b.queue, events...)
	metrics.BufferPending.Set(float64(len(b.queue)))
	full := len(b.queue) >= b.flushAt
	b.mu.Unlock()

	if full {
		return b.Flush()
	}
	return nil
}

// evict drops the over oldest entries, preferring queued ones, and
// returns the (possibly trimmed) incoming slice. Caller holds the lock.
func (b *EventBuffer) evict(over int, incoming []*models.IngestEvent) []*models.IngestEvent {
	fromQueue := over
	if fromQueue > len(b.queue) {
		fromQueue = len(b.queue)
	}
	b.queue = b.queue[fromQueue:]

	if fromIncoming := over - fromQueue; fromIncoming > 0 {
		incoming = incoming[fromIncoming:]
	}

	b.dropped.Add(int64(over))
	metrics.BufferDroppedTotal.Add(float64(over))
	log.Printf("warning: event buffer overflow, dropped %d events", over)
	return incoming
}

// Flush writes everything queued in one batch. On failure the batch is
// put back at the front (trimmed to the cap) for the next attempt.
func (b *EventBuffer) Flush() error {
	b.mu.Lock()
	if len(b.queue) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := b.queue
	b.queue = make([]*models.IngestEvent, 0, b.flushAt)
	metrics.BufferPending.Set(0)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	if err := b.repo.InsertBatch(ctx, batch); err != nil {
		metrics.BufferFlushErrors.Inc()
		b.requeue(batch)
		return err
	}

	b.flushed.Add(1)
	b.inserted.Add(int64(len(batch)))
	metrics.BufferFlushesTotal.Inc()
	metrics.BufferInsertedTotal.Add(float64(len(batch)))
	return nil
}

func (b *EventBuffer) requeue(batch []*models.IngestEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(batch, b.queue...)
	if over := len(b.queue) - b.maxQueue; over > 0 {
		b.queue = b.queue[over:]
		b.dropped.Add(int64(over))
		metrics.BufferDroppedTotal.Add(float64(over))
	}
	metrics.BufferPending.Set(float64(len(b.queue)))
}

func (b *EventBuffer) run() {
	defer close(b.doneCh)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				log.Printf("event buffer flush error: %v", err)
			}
		case <-b.stopCh:
			if err := b.Flush(); err != nil {
				log.Printf("event buffer final flush error: %v", err)
			}
			return
		}
	}
}

// Close stops the loop after one final flush. Events added after Close
// are discarded silently.
func (b *EventBuffer) Close() error {
	if b.stopped.Swap(true) {
		return nil
	}
	close(b.stopCh)
	<-b.doneCh
	return nil
}

// EventBufferStats contains buffer statistics.
type EventBufferStats struct {
	Pending  int   // events waiting to be flushed
	Dropped  int64 // events lost to backpressure
	Flushed  int64 // completed flush operations
	Inserted int64 // events successfully archived
}

// Stats returns buffer statistics.
func (b *EventBuffer) Stats() EventBufferStats {
	b.mu.Lock()
	pending := len(b.queue)
	b.mu.Unlock()

	return EventBufferStats{
		Pending:  pending,
		Dropped:  b.dropped.Load(),
		Flushed:  b.flushed.Load(),
		Inserted: b.inserted.Load(),
	}
}
