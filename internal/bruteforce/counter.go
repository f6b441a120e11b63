// Package bruteforce tracks failed-login attempts per log source over
// fixed time windows and flags the attempt that crosses the threshold.
package bruteforce

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/logwarden/logwarden/internal/models"
	"github.com/logwarden/logwarden/internal/storage"
)

const (
	// DefaultThreshold is the attempt count that crosses the window.
	DefaultThreshold = 3

	// DefaultWindow is the width of a counting window.
	DefaultWindow = 5 * time.Minute
)

// Counter counts failed-login attempts per source. Counts live in the
// table store so every server process observes the same window; the
// store increment is atomic, so concurrent attempts each see a
// distinct count.
type Counter struct {
	counters  storage.CounterRepository
	threshold int64
	window    time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped atomic.Bool
}

// Config holds Counter configuration.
type Config struct {
	// Threshold is the count at which a window crosses.
	Threshold int64

	// Window is the width of a counting window.
	Window time.Duration

	// CleanupInterval is how often expired windows are removed.
	CleanupInterval time.Duration
}

// NewCounter creates a counter backed by the given repository.
func NewCounter(counters storage.CounterRepository, config *Config) *Counter {
	if config == nil {
		config = &Config{}
	}
	// Apply defaults
	if config.Threshold == 0 {
		config.Threshold = DefaultThreshold
	}
	if config.Window == 0 {
		config.Window = DefaultWindow
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = config.Window
	}

	c := &Counter{
		counters:  counters,
		threshold: config.Threshold,
		window:    config.Window,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	// Start cleanup goroutine
	go c.cleanupLoop(config.CleanupInterval)

	return c
}

// Increment records a failed-login attempt for the source at the given
// time and returns the attempt count within the current window.
// Sequential attempts in one window observe 1, 2, 3, …
func (c *Counter) Increment(ctx context.Context, source string, now time.Time) (int64, error) {
	windowStart := models.WindowStartAt(now, c.window)
	return c.counters.Increment(ctx, source, windowStart, now)
}

// Crosses reports whether this count is the crossing attempt. Only the
// attempt whose count equals the threshold exactly crosses, so each
// window yields at most one crossing.
func (c *Counter) Crosses(count int64) bool {
	return count == c.threshold
}

// Threshold returns the configured crossing threshold.
func (c *Counter) Threshold() int64 {
	return c.threshold
}

// Window returns the configured window width.
func (c *Counter) Window() time.Duration {
	return c.window
}

// cleanupLoop periodically removes expired windows from the store.
func (c *Counter) cleanupLoop(interval time.Duration) {
	defer close(c.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCh:
			return
		}
	}
}

// cleanup removes counters whose window closed more than one window
// ago. The previous window is retained for attempts that arrive right
// at a boundary.
func (c *Counter) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-2 * c.window)
	deleted, err := c.counters.DeleteExpired(ctx, cutoff)
	if err != nil {
		log.Printf("counter cleanup error: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("counter cleanup removed %d expired windows", deleted)
	}
}

// Close stops the cleanup goroutine.
func (c *Counter) Close() error {
	if c.stopped.Swap(true) {
		return nil // Already stopped
	}
	close(c.stopCh)
	<-c.doneCh
	return nil
}
