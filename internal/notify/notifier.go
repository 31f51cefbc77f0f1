package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Notifier is the delivery channel: one text message out, an error back.
// The pipeline is indifferent to what sits behind it.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

const defaultSendTimeout = 15 * time.Second

// Webhook posts messages as JSON to a configured URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

type WebhookOption func(*Webhook)

func WithWebhookHTTPClient(httpClient *http.Client) WebhookOption {
	return func(w *Webhook) { w.httpClient = httpClient }
}

func NewWebhook(url string, logger zerolog.Logger, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: defaultSendTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (w *Webhook) Send(ctx context.Context, text string) error {
	if w == nil || w.url == "" {
		return fmt.Errorf("webhook notifier is not configured")
	}

	body, err := json.Marshal(webhookPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification status %d", resp.StatusCode)
	}
	return nil
}

// Discard drops every message, used when no channel is configured.
type Discard struct{}

func (Discard) Send(context.Context, string) error { return nil }
