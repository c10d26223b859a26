package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WebhookNotifier posts events as JSON to a webhook endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *log.Logger
}

// WebhookOptions configures a webhook notifier.
type WebhookOptions struct {
	URL     string
	Timeout time.Duration // Default: 5s
	Logger  *log.Logger
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(opts WebhookOptions) *WebhookNotifier {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookNotifier{
		url:    opts.URL,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify posts the event. Failures are logged and swallowed so that a
// dead webhook never stalls event processing.
func (n *WebhookNotifier) Notify(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Printf("webhook: marshal %s event: %v", event.Kind, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		n.logger.Printf("webhook: build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Printf("webhook: deliver %s event: %v", event.Kind, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Printf("webhook: %s event rejected with status %d", event.Kind, resp.StatusCode)
	}
}

var _ Notifier = (*WebhookNotifier)(nil)

// LogNotifier writes events to a logger. Used when no webhook is
// configured so that notable activity still lands in the process log.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, event Event) {
	n.logger.Printf("event %s instrument=%s from=%s to=%s amount=%s pct=%.2f",
		event.Kind, event.InstrumentID, event.FromAddress, event.ToAddress, event.Amount, event.Percentage)
}

var _ Notifier = (*LogNotifier)(nil)
