// Package webhook forwards dispatch records to an external workflow endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/responder-dispatch-service/internal/domain"
)

// Notifier POSTs each dispatch record as JSON to a fixed URL.
type Notifier struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates a webhook notifier with the given request timeout.
func NewNotifier(url string, timeout time.Duration, logger *slog.Logger) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Publish sends rec to the webhook. Any non-2xx response is an error.
func (n *Notifier) Publish(ctx context.Context, rec domain.DispatchRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode dispatch record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Dispatch-ID", rec.ID)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook error: status %d: %s", resp.StatusCode, msg)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	n.logger.Debug("webhook delivered", "dispatch_id", rec.ID, "status", resp.StatusCode)
	return nil
}
