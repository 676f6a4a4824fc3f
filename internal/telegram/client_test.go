package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	c := NewClient("test-token", "12345", zerolog.New(nil).Level(zerolog.Disabled))
	c.baseURL = baseURL
	return c
}

func TestSend(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	messageID, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, int64(42), messageID)
	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotPayload["chat_id"])
	assert.Equal(t, "hello", gotPayload["text"])
}

func TestSend_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestSend_DisabledClient(t *testing.T) {
	c := NewClient("", "", zerolog.New(nil).Level(zerolog.Disabled))
	assert.False(t, c.Enabled())

	_, err := c.Send(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNotify_SwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"ok":false,"description":"boom"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	c.Notify(context.Background(), "hello") // must not panic or block
}
