package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookTimeout bounds a single webhook delivery.
const WebhookTimeout = 10 * time.Second

// Webhook POSTs events as JSON to a fixed URL. When Secret is set it is sent
// in the X-Workflow-Secret header.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
}

// NewWebhook returns a Webhook with a client bounded by WebhookTimeout.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		URL:    url,
		Secret: secret,
		Client: &http.Client{Timeout: WebhookTimeout},
	}
}

// Name returns DriverWebhook.
func (w *Webhook) Name() string { return DriverWebhook }

// ZipRequested delivers ev. Any non-2xx response is an error.
func (w *Webhook) ZipRequested(ctx context.Context, ev ZipRequestedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Secret != "" {
		req.Header.Set("X-Workflow-Secret", w.Secret)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
