package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// update is a Telegram Update object (partial schema).
type update struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From struct {
			Username string `json:"username"`
		} `json:"from"`
	} `json:"message"`
}

type updateResponse struct {
	Ok          bool     `json:"ok"`
	Result      []update `json:"result"`
	Description string   `json:"description"`
	ErrorCode   int      `json:"error_code"`
}

// CommandHandler processes one slash command and returns the reply text.
type CommandHandler func(ctx context.Context, command string) string

// Listener long-polls getUpdates and dispatches slash commands from the
// authorized chat to the handler.
type Listener struct {
	client  *Client
	handler CommandHandler
}

// NewListener creates a command listener on top of an existing client.
func NewListener(client *Client, handler CommandHandler) *Listener {
	return &Listener{client: client, handler: handler}
}

// Run blocks polling for updates until ctx is cancelled. Call it in a
// goroutine. Transient API failures back off and retry.
func (l *Listener) Run(ctx context.Context) {
	if !l.client.Enabled() {
		l.client.log.Info().Msg("Listener disabled, credentials missing")
		return
	}

	authChatID, err := strconv.ParseInt(l.client.chatID, 10, 64)
	if err != nil {
		l.client.log.Error().Str("chat_id", l.client.chatID).Msg("Listener disabled, chat ID is not numeric")
		return
	}

	l.client.log.Info().Msg("Listener started")
	var offset int64

	for {
		updates, err := l.poll(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				l.client.log.Info().Msg("Listener stopped")
				return
			}
			l.client.log.Warn().Err(err).Msg("Polling failed, backing off")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1

			// Unauthorized chats get no reply at all, to avoid leaking
			// the bot's existence.
			if u.Message.Chat.ID != authChatID {
				l.client.log.Warn().
					Str("username", u.Message.From.Username).
					Int64("chat_id", u.Message.Chat.ID).
					Str("text", u.Message.Text).
					Msg("Unauthorized command attempt")
				continue
			}

			text := strings.TrimSpace(u.Message.Text)
			if !strings.HasPrefix(text, "/") {
				continue
			}
			l.client.log.Info().Str("command", text).Msg("Command received")
			reply := l.handler(ctx, text)
			if reply != "" {
				l.client.Notify(ctx, reply)
			}
		}
	}
}

// poll performs one long-poll request. The HTTP timeout must exceed the
// long-poll window, so this uses its own client rather than the sender's.
func (l *Listener) poll(ctx context.Context, offset int64) ([]update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=50", l.client.baseURL, l.client.token, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	pollClient := &http.Client{Timeout: 60 * time.Second}
	resp, err := pollClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result updateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding updates: %w", err)
	}
	if !result.Ok {
		return nil, fmt.Errorf("telegram API error: %s (code %d)", result.Description, result.ErrorCode)
	}
	return result.Result, nil
}
