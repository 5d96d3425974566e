package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"shift_attendance_bot/internal/domain/escalation"
	"shift_attendance_bot/internal/domain/notification"
)

// WebhookPayload is the JSON body posted to an SMS or voice provider bridge.
type WebhookPayload struct {
	Channel  string `json:"channel"`
	To       string `json:"to"`
	Name     string `json:"name,omitempty"`
	WorkerID string `json:"worker_id,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Text     string `json:"text"`
}

// WebhookSender posts phone-addressed messages to an HTTP endpoint.
type WebhookSender struct {
	channel escalation.Channel
	url     string
	token   string
	client  *http.Client
}

// NewWebhookSender creates a sender for channel with its own HTTP client.
func NewWebhookSender(channel escalation.Channel, url, token string, timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewWebhookSenderWithClient(channel, url, token, &http.Client{Timeout: timeout})
}

func NewWebhookSenderWithClient(channel escalation.Channel, url, token string, client *http.Client) *WebhookSender {
	return &WebhookSender{channel: channel, url: url, token: token, client: client}
}

func (w *WebhookSender) Send(ctx context.Context, to notification.Recipient, msg notification.Message) error {
	if to.Phone == "" {
		return fmt.Errorf("%w: worker %s has no phone number", notification.ErrNoAddress, to.WorkerID)
	}

	body, err := json.Marshal(WebhookPayload{
		Channel:  string(w.channel),
		To:       to.Phone,
		Name:     to.Name,
		WorkerID: to.WorkerID,
		RecordID: msg.RecordID,
		Text:     msg.Text,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookSender) Name() string {
	return string(w.channel) + "-webhook"
}
