package models

import (
	"fmt"
	"time"
)

// AttemptCounter is one fixed-width window bucket counting failed-login
// events for a single source. Buckets are keyed by source and window
// start; a new window means a new row starting at 1.
type AttemptCounter struct {
	// Key is the storage key, "<source>|<window start unix seconds>".
	Key string `json:"key"`

	// Source is the attributed log source.
	Source string `json:"source"`

	// WindowStart is the inclusive start of the window bucket.
	WindowStart time.Time `json:"window_start"`

	// Count is the number of failed-login events recorded in this
	// bucket. Never decremented.
	Count int64 `json:"count"`

	// FirstSeen and LastSeen bound the observed events in this bucket.
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// CounterKey builds the storage key for a source and window start.
func CounterKey(source string, windowStart time.Time) string {
	return fmt.Sprintf("%s|%d", source, windowStart.Unix())
}

// WindowStartAt truncates now to the containing fixed window.
func WindowStartAt(now time.Time, width time.Duration) time.Time {
	return now.Truncate(width)
}
