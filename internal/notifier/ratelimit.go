package notifier

import (
	"sort"
	"sync"
	"time"
)

// RateLimitConfig tunes the notification rate limiter.
type RateLimitConfig struct {
	MaxPerWindow int           // sends admitted per window, 10 when zero
	Window       time.Duration // sliding window length, one minute when zero
	Enabled      bool          // false disables limiting entirely
}

// DefaultRateLimitConfig returns the stock limiter settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPerWindow: 10,
		Window:       time.Minute,
		Enabled:      true,
	}
}

// RateLimiter bounds notification volume with a sliding window: each
// allowed send is timestamped, and a send goes through only while fewer
// than MaxPerWindow timestamps fall inside the trailing window.
type RateLimiter struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	sent    []time.Time // timestamps of allowed sends, oldest first
	dropped int64
}

// NewRateLimiter creates a rate limiter, filling zero config values
// with the defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.MaxPerWindow <= 0 {
		cfg.MaxPerWindow = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return &RateLimiter{
		cfg:  cfg,
		sent: make([]time.Time, 0, cfg.MaxPerWindow),
	}
}

// Allow reports whether a send fits the window, recording it when it
// does and counting it as dropped when it does not.
func (r *RateLimiter) Allow() bool {
	if !r.cfg.Enabled {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.expire(now)

	if len(r.sent) >= r.cfg.MaxPerWindow {
		r.dropped++
		return false
	}

	r.sent = append(r.sent, now)
	return true
}

// Release refunds the newest recorded send. Used when every channel
// failed after Allow admitted the notification.
func (r *RateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.sent); n > 0 {
		r.sent = r.sent[:n-1]
	}
}

// expire drops sends that have aged out of the window ending at now.
// Caller holds the mutex.
func (r *RateLimiter) expire(now time.Time) {
	cutoff := now.Add(-r.cfg.Window)
	keep := sort.Search(len(r.sent), func(i int) bool {
		return !r.sent[i].Before(cutoff)
	})
	if keep > 0 {
		r.sent = append(r.sent[:0], r.sent[keep:]...)
	}
}

// Dropped returns how many notifications the limiter has rejected.
func (r *RateLimiter) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// RateLimitStats is a point-in-time snapshot of the limiter.
type RateLimitStats struct {
	Dropped      int64
	CurrentCount int
	MaxPerWindow int
	Window       time.Duration
	Enabled      bool
}

// Stats snapshots the limiter state.
func (r *RateLimiter) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RateLimitStats{
		Dropped:      r.dropped,
		CurrentCount: len(r.sent),
		MaxPerWindow: r.cfg.MaxPerWindow,
		Window:       r.cfg.Window,
		Enabled:      r.cfg.Enabled,
	}
}

// Reset clears recorded sends and the dropped counter.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = r.sent[:0]
	r.dropped = 0
}
