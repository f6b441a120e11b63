package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/logwarden/logwarden/internal/models"
)

// dispatcherMockNotifier is a test notifier that can be configured to fail.
type dispatcherMockNotifier struct {
	name      string
	shouldErr bool
	sendCount int
	lastSent  *Notification
}

func (m *dispatcherMockNotifier) Name() string {
	return m.name
}

func (m *dispatcherMockNotifier) Send(ctx context.Context, n *Notification) error {
	m.sendCount++
	m.lastSent = n
	if m.shouldErr {
		return errors.New("mock send error")
	}
	return nil
}

func (m *dispatcherMockNotifier) Close() error {
	return nil
}

func testNotification() *Notification {
	return &Notification{
		Title:    "Test incident",
		Body:     "Source: 203.0.113.45",
		Severity: models.SeverityHigh,
	}
}

func TestDispatcherSendsToAllChannels(t *testing.T) {
	dispatcher := NewDispatcher()

	n1 := &dispatcherMockNotifier{name: "webhook"}
	n2 := &dispatcherMockNotifier{name: "email"}
	dispatcher.Register(n1)
	dispatcher.Register(n2)

	if err := dispatcher.Dispatch(context.Background(), testNotification()); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if n1.sendCount != 1 {
		t.Errorf("webhook send count = %d, want 1", n1.sendCount)
	}
	if n2.sendCount != 1 {
		t.Errorf("email send count = %d, want 1", n2.sendCount)
	}
	if n1.lastSent.Title != "Test incident" {
		t.Errorf("sent title = %q, want %q", n1.lastSent.Title, "Test incident")
	}
}

func TestDispatcherRefundsTokenOnAllFailures(t *testing.T) {
	config := RateLimitConfig{
		MaxPerWindow: 2,
		Window:       time.Minute,
		Enabled:      true,
	}
	dispatcher := NewDispatcherWithRateLimit(config)

	failing := &dispatcherMockNotifier{name: "failing", shouldErr: true}
	dispatcher.Register(failing)

	// First dispatch - fails, should refund token
	err := dispatcher.Dispatch(context.Background(), testNotification())
	if err == nil {
		t.Error("expected error from failing notifier")
	}

	stats := dispatcher.RateLimitStats()
	if stats.CurrentCount != 0 {
		t.Errorf("current count = %d, want 0 (token should be refunded)", stats.CurrentCount)
	}

	// Second failure also refunds
	err = dispatcher.Dispatch(context.Background(), testNotification())
	if err == nil {
		t.Error("expected error from failing notifier")
	}

	stats = dispatcher.RateLimitStats()
	if stats.CurrentCount != 0 {
		t.Errorf("current count = %d, want 0 after second failure", stats.CurrentCount)
	}
}

func TestDispatcherKeepsTokenOnPartialSuccess(t *testing.T) {
	config := RateLimitConfig{
		MaxPerWindow: 2,
		Window:       time.Minute,
		Enabled:      true,
	}
	dispatcher := NewDispatcherWithRateLimit(config)

	dispatcher.Register(&dispatcherMockNotifier{name: "failing", shouldErr: true})
	dispatcher.Register(&dispatcherMockNotifier{name: "success"})

	err := dispatcher.Dispatch(context.Background(), testNotification())
	if err == nil {
		t.Error("expected error due to partial failure")
	}

	stats := dispatcher.RateLimitStats()
	if stats.CurrentCount != 1 {
		t.Errorf("current count = %d, want 1 (token should be kept on partial success)", stats.CurrentCount)
	}
}

func TestDispatcherKeepsTokenOnFullSuccess(t *testing.T) {
	config := RateLimitConfig{
		MaxPerWindow: 2,
		Window:       time.Minute,
		Enabled:      true,
	}
	dispatcher := NewDispatcherWithRateLimit(config)

	dispatcher.Register(&dispatcherMockNotifier{name: "success"})

	if err := dispatcher.Dispatch(context.Background(), testNotification()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	stats := dispatcher.RateLimitStats()
	if stats.CurrentCount != 1 {
		t.Errorf("current count = %d, want 1", stats.CurrentCount)
	}
}

func TestDispatcherNoChannelsConsumesNoToken(t *testing.T) {
	config := RateLimitConfig{
		MaxPerWindow: 2,
		Window:       time.Minute,
		Enabled:      true,
	}
	dispatcher := NewDispatcherWithRateLimit(config)

	if err := dispatcher.Dispatch(context.Background(), testNotification()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	stats := dispatcher.RateLimitStats()
	if stats.CurrentCount != 0 {
		t.Errorf("current count = %d, want 0 when no channels registered", stats.CurrentCount)
	}
}

func TestDispatcherRateLimited(t *testing.T) {
	config := RateLimitConfig{
		MaxPerWindow: 1,
		Window:       time.Minute,
		Enabled:      true,
	}
	dispatcher := NewDispatcherWithRateLimit(config)

	success := &dispatcherMockNotifier{name: "success"}
	dispatcher.Register(success)

	if err := dispatcher.Dispatch(context.Background(), testNotification()); err != nil {
		t.Fatalf("first dispatch failed: %v", err)
	}

	err := dispatcher.Dispatch(context.Background(), testNotification())
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("second dispatch error = %v, want ErrRateLimited", err)
	}

	if success.sendCount != 1 {
		t.Errorf("send count = %d, want 1 (rate limited dispatch should not send)", success.sendCount)
	}
}

func TestDispatcherRegisterUnregister(t *testing.T) {
	dispatcher := NewDispatcher()

	n := &dispatcherMockNotifier{name: "webhook"}
	dispatcher.Register(n)

	if _, ok := dispatcher.Get("webhook"); !ok {
		t.Error("expected webhook notifier to be registered")
	}

	channels := dispatcher.Channels()
	if len(channels) != 1 || channels[0] != "webhook" {
		t.Errorf("channels = %v, want [webhook]", channels)
	}

	dispatcher.Unregister("webhook")
	if _, ok := dispatcher.Get("webhook"); ok {
		t.Error("expected webhook notifier to be unregistered")
	}
}

func TestDispatcherClose(t *testing.T) {
	dispatcher := NewDispatcher()
	n := &dispatcherMockNotifier{name: "webhook"}
	dispatcher.Register(n)

	if err := dispatcher.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// After close, dispatch is a no-op
	if err := dispatcher.Dispatch(context.Background(), testNotification()); err != nil {
		t.Errorf("dispatch after close: %v", err)
	}
	if n.sendCount != 0 {
		t.Errorf("send count = %d, want 0 after close", n.sendCount)
	}
}

func TestFromIncident(t *testing.T) {
	inc := &models.Incident{
		ID:             "inc-123",
		CreatedAt:      time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC),
		LogSource:      "203.0.113.45",
		Findings:       []models.RuleID{models.RuleSQLInjection},
		Severity:       models.SeverityCritical,
		MessageExcerpt: "SELECT * FROM users WHERE 1=1",
	}

	n := FromIncident(inc)

	if n.Title != "[CRITICAL] Security incident: SQL_INJECTION_PATTERN" {
		t.Errorf("title = %q", n.Title)
	}
	if n.Severity != models.SeverityCritical {
		t.Errorf("severity = %q, want critical", n.Severity)
	}
	for _, want := range []string{"inc-123", "203.0.113.45", "critical", "SQL_INJECTION_PATTERN", "SELECT * FROM users"} {
		if !strings.Contains(n.Body, want) {
			t.Errorf("body missing %q:\n%s", want, n.Body)
		}
	}
}

func TestFromIncidentBruteForce(t *testing.T) {
	inc := &models.Incident{
		ID:        "inc-456",
		CreatedAt: time.Now(),
		LogSource: "203.0.113.45",
		Findings:  []models.RuleID{models.RuleBruteForce},
		Severity:  models.SeverityHigh,
	}

	n := FromIncident(inc)

	if n.Title != "Brute force detected from 203.0.113.45" {
		t.Errorf("title = %q", n.Title)
	}
}
