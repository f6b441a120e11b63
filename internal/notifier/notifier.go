// Package notifier provides best-effort notification delivery for incidents.
package notifier

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/logwarden/logwarden/internal/models"
)

// Notification is a rendered message ready for delivery.
type Notification struct {
	Title    string
	Body     string
	Severity models.Severity
	Incident *models.Incident
}

// FromIncident builds a notification from an incident record.
func FromIncident(inc *models.Incident) *Notification {
	findings := make([]string, len(inc.Findings))
	for i, f := range inc.Findings {
		findings[i] = string(f)
	}

	var title string
	if inc.HasFinding(models.RuleBruteForce) {
		title = fmt.Sprintf("Brute force detected from %s", inc.LogSource)
	} else {
		title = fmt.Sprintf("[%s] Security incident: %s", strings.ToUpper(string(inc.Severity)), strings.Join(findings, ", "))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Incident: %s\n", inc.ID)
	fmt.Fprintf(&body, "Source: %s\n", inc.LogSource)
	fmt.Fprintf(&body, "Severity: %s\n", inc.Severity)
	fmt.Fprintf(&body, "Findings: %s\n", strings.Join(findings, ", "))
	fmt.Fprintf(&body, "Time: %s\n", inc.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
	if inc.MessageExcerpt != "" {
		fmt.Fprintf(&body, "\n%s", inc.MessageExcerpt)
	}

	return &Notification{
		Title:    title,
		Body:     body.String(),
		Severity: inc.Severity,
		Incident: inc,
	}
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "email", "webhook").
	Name() string
	// Send delivers a notification.
	Send(ctx context.Context, n *Notification) error
	// Close releases any resources.
	Close() error
}

// Dispatcher fans a notification out to all registered channels.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   map[string]Notifier
	rateLimiter *RateLimiter
}

// NewDispatcher creates a dispatcher with default rate limiting.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(DefaultRateLimitConfig()),
	}
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate limit configuration.
func NewDispatcherWithRateLimit(config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		notifiers:   make(map[string]Notifier),
		rateLimiter: NewRateLimiter(config),
	}
}

// Register adds a notifier to the dispatcher.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifiers[n.Name()] = n
}

// Unregister removes a notifier from the dispatcher.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notifiers, name)
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.notifiers[name]
	return n, ok
}

// Channels returns the names of all registered notifiers.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.notifiers))
	for name := range d.notifiers {
		names = append(names, name)
	}
	return names
}

// ErrRateLimited is returned when a notification is dropped due to rate limiting.
var ErrRateLimited = fmt.Errorf("notification rate limited")

// Dispatch sends a notification to every registered channel. When all
// channels fail the rate limit token is refunded so a dropped delivery
// does not also burn quota. Returns ErrRateLimited when the limiter
// rejects the notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(d.notifiers) == 0 {
		return nil
	}

	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		return ErrRateLimited
	}

	var errs []error
	succeeded := 0
	for name, nt := range d.notifiers {
		if err := nt.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		succeeded++
	}

	if len(errs) > 0 {
		if succeeded == 0 && d.rateLimiter != nil {
			d.rateLimiter.Release()
		}
		return fmt.Errorf("notification errors: %v", errs)
	}
	return nil
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// Close closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for name, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	d.notifiers = make(map[string]Notifier)

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
