package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookSink posts alerts as JSON to a chat webhook.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

var _ Sink = (*WebhookSink)(nil)

func (s *WebhookSink) Deliver(ctx context.Context, alert Alert) error {
	payload := map[string]interface{}{
		"text":     formatText(alert),
		"severity": alert.Severity,
		"alert":    alert,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func formatText(alert Alert) string {
	verb := "flagged"
	if alert.Severity == SeverityCritical {
		verb = "suspended"
	}
	return fmt.Sprintf("[%s] %s %s %s: %s",
		strings.ToUpper(string(alert.Severity)), alert.Kind, alert.Identifier, verb,
		strings.Join(alert.Reasons, ", "))
}
