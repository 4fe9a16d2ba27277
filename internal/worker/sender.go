package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stockledger/internal/model"

	"github.com/rs/zerolog/log"
)

// Sender delivers one alert. A returned error triggers a retry.
type Sender interface {
	Send(ctx context.Context, alert model.LowStockAlert) error
}

// WebhookSender POSTs the alert as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *WebhookSender) Send(ctx context.Context, alert model.LowStockAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// LogSender is used when no webhook is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, alert model.LowStockAlert) error {
	log.Warn().
		Str("product_id", alert.ProductID.String()).
		Str("sku", alert.SKU).
		Int64("current_stock", alert.CurrentStock).
		Int("reorder_threshold", alert.ReorderThreshold).
		Msg("low stock")
	return nil
}

// NewSender picks the webhook sender when url is set.
func NewSender(url string) Sender {
	if url == "" {
		return LogSender{}
	}
	return NewWebhookSender(url)
}
