package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookConfig holds webhook notifier configuration.
type WebhookConfig struct {
	URL string // webhook endpoint URL
}

// Validate validates the webhook configuration.
func (c *WebhookConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	return nil
}

// WebhookNotifier posts notifications to a webhook endpoint.
type WebhookNotifier struct {
	config     WebhookConfig
	httpClient *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}

	return &WebhookNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name returns "webhook".
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// webhookMessage is the posted JSON envelope. The content field carries
// the bolded title followed by the body on subsequent lines.
type webhookMessage struct {
	Content string `json:"content"`
}

// Send posts the notification to the configured URL.
func (w *WebhookNotifier) Send(ctx context.Context, n *Notification) error {
	payload := webhookMessage{
		Content: fmt.Sprintf("**%s**\n%s", n.Title, n.Body),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for webhook notifier.
func (w *WebhookNotifier) Close() error {
	return nil
}
