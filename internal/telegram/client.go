// Package telegram implements a minimal Telegram Bot API client for
// outbound notifications and an inbound command listener. Only the
// sendMessage and getUpdates endpoints are used; no bot framework needed.
package telegram

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

const defaultBaseURL = "https://api.telegram.org"

// Client sends messages to a single configured chat.
type Client struct {
	baseURL string
	token   string
	chatID  string
	http    *http.Client
	log     zerolog.Logger
}

// NewClient creates a Telegram client. An empty token or chat ID yields a
// disabled client: Notify becomes a no-op and Enabled reports false.
func NewClient(token, chatID string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("service", "telegram").Logger(),
	}
}

// Enabled reports whether credentials are configured.
func (c *Client) Enabled() bool {
	return c.token != "" && c.chatID != ""
}

// Send delivers a message to the configured chat and returns the Telegram
// message ID.
func (c *Client) Send(ctx context.Context, text string) (int64, error) {
	if !c.Enabled() {
		return 0, fmt.Errorf("telegram credentials not configured")
	}

	payload := map[string]string{
		"chat_id":    c.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	var apiResp struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&apiResp); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	if !apiResp.Ok {
		return 0, fmt.Errorf("telegram API error: %s", apiResp.Description)
	}
	return apiResp.Result.MessageID, nil
}

// Notify sends a message best-effort: failures are logged, never returned.
// Trade execution must not stall on a notification outage.
func (c *Client) Notify(ctx context.Context, text string) {
	if !c.Enabled() {
		return
	}
	if _, err := c.Send(ctx, text); err != nil {
		c.log.Warn().Err(err).Msg("Notification delivery failed")
	}
}
