// Discord webhook client
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/trackwatch/internal/shared"
)

// WebhookMessage is the JSON body posted to the webhook.
type WebhookMessage struct {
	Content         string          `json:"content"`
	AllowedMentions AllowedMentions `json:"allowed_mentions"`
}

// AllowedMentions restricts which mentions in Content actually ping.
//
// An empty, non-nil Parse list suppresses every ping.
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// APIResponse represents a raw webhook response with status and body.
type APIResponse struct {
	StatusCode int
	Body       []byte
}

// DiscordService posts messages to a Discord webhook, optionally inside a thread.
type DiscordService struct {
	webhookURL string
	threadID   string
	httpClient *http.Client
}

// NewDiscordService creates a webhook client. threadID may be empty.
func NewDiscordService(webhookURL, threadID string, client *http.Client) (*DiscordService, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("%w: missing webhook url", shared.ErrMissingCredentials)
	}
	if _, err := url.Parse(webhookURL); err != nil {
		return nil, fmt.Errorf("%w: webhook url: %v", shared.ErrInvalidConfig, err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &DiscordService{webhookURL: webhookURL, threadID: threadID, httpClient: client}, nil
}

// Send posts content as a single message with mentions suppressed.
//
// Non-2xx responses fail with [shared.ErrNotifyFailed].
func (d *DiscordService) Send(ctx context.Context, content string) error {
	data, err := json.Marshal(WebhookMessage{
		Content:         content,
		AllowedMentions: AllowedMentions{Parse: []string{}},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal message: %v", shared.ErrNotifyFailed, err)
	}

	resp, err := d.Post(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotifyFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrNotifyFailed, resp.StatusCode, string(resp.Body))
	}
	return nil
}

// Post performs a POST request with the given JSON data and returns the raw response.
//
// wait=true makes Discord answer only once the message exists.
func (d *DiscordService) Post(ctx context.Context, data []byte) (*APIResponse, error) {
	target, err := d.target()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func (d *DiscordService) target() (string, error) {
	u, err := url.Parse(d.webhookURL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook url: %w", err)
	}

	q := u.Query()
	q.Set("wait", "true")
	if d.threadID != "" {
		q.Set("thread_id", d.threadID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
