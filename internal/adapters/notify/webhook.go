// Package notify posts audit events to an outbound messaging webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vanguard/internal/domain"
	"vanguard/internal/ports"
)

type Webhook struct {
	endpoint string
	key      string
	client   *http.Client
}

var _ ports.Notifier = (*Webhook)(nil)

func NewWebhook(endpoint, key string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Webhook{endpoint: endpoint, key: key, client: &http.Client{Timeout: timeout}}
}

// Notify makes one delivery attempt. Every error is a NotificationFailure.
func (w *Webhook) Notify(ctx context.Context, ev ports.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return domain.NewFailure(domain.NotificationFailure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.NewFailure(domain.NotificationFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.key != "" {
		req.Header.Set("Authorization", "Bearer "+w.key)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.NewFailure(domain.NotificationFailure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode/100 != 2 {
		return domain.NewFailure(domain.NotificationFailure, fmt.Errorf("webhook returned %s", resp.Status))
	}
	return nil
}
