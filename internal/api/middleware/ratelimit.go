package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/logwarden/logwarden/internal/metrics"
)

// SourceRateLimiter keeps one token bucket per client source. Buckets
// for idle sources are dropped by a background sweep.
type SourceRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*sourceEntry
	rps     rate.Limit
	burst   int

	stopCh chan struct{}
	doneCh chan struct{}
}

type sourceEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSourceRateLimiter creates a limiter allowing rps requests per
// second per source with the given burst. rps <= 0 disables limiting
// and returns nil.
func NewSourceRateLimiter(rps float64, burst int) *SourceRateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	l := &SourceRateLimiter{
		entries: make(map[string]*sourceEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	go l.cleanupLoop()
	return l
}

// Allow reports whether the source may proceed now.
func (l *SourceRateLimiter) Allow(source string) bool {
	l.mu.Lock()
	entry, ok := l.entries[source]
	if !ok {
		entry = &sourceEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.entries[source] = entry
	}
	entry.lastSeen = time.Now()
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// cleanupLoop periodically drops buckets idle longer than 10 minutes.
func (l *SourceRateLimiter) cleanupLoop() {
	defer close(l.doneCh)
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now().Add(-10 * time.Minute))
		case <-l.stopCh:
			return
		}
	}
}

func (l *SourceRateLimiter) cleanup(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for source, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, source)
		}
	}
}

// Close stops the cleanup goroutine.
func (l *SourceRateLimiter) Close() {
	close(l.stopCh)
	<-l.doneCh
}

// jsonRateLimited writes the 429 envelope.
func jsonRateLimited(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}{false, "rate_limited"})
}

// RateLimitBySource returns middleware that rejects requests whose
// client source exhausted its token bucket. A nil limiter passes
// everything through.
func RateLimitBySource(limiter *SourceRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(ClientIP(r)) {
				metrics.IngestRateLimitedTotal.Inc()
				jsonRateLimited(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the originating client address: X-Forwarded-For
// first hop, then X-Real-IP, then the connection peer.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First hop is the original client.
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
