package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sniper/internal/models"
	"sniper/pkg/httpclient"
)

func newTestTelegram(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(srv.URL, httpclient.New(httpclient.DefaultConfig()), zap.NewNop())
}

func TestSendHTMLWithKeyboard(t *testing.T) {
	var got sendMessageRequest
	client := newTestTelegram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"ok":true}`))
	}))

	kb := models.SingleButton("Buy 0.01 SOL", "buy_MintX")
	err := client.Send(context.Background(), 42, "<b>alert</b>", kb)
	require.NoError(t, err)

	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "<b>alert</b>", got.Text)
	assert.Equal(t, "HTML", got.ParseMode)
	require.NotNil(t, got.ReplyMarkup)
	require.Len(t, got.ReplyMarkup.InlineKeyboard, 1)
	assert.Equal(t, "buy_MintX", got.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestSendRetriesPlainTextOnParseErrorOnce(t *testing.T) {
	var requests []sendMessageRequest
	client := newTestTelegram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))
		requests = append(requests, req)

		if req.ParseMode == "HTML" {
			w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities"}`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))

	err := client.Send(context.Background(), 42, "<b>broken <alert</b>", nil)
	require.NoError(t, err)

	require.Len(t, requests, 2)
	assert.Equal(t, "HTML", requests[0].ParseMode)
	assert.Empty(t, requests[1].ParseMode)
	assert.NotContains(t, requests[1].Text, "<b>")
}

func TestSendNonParseErrorNotRetried(t *testing.T) {
	var calls int
	client := newTestTelegram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))

	err := client.Send(context.Background(), 42, "hello", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Description, "blocked")
}

func TestUpdatesParsesMessagesAndCallbacks(t *testing.T) {
	client := newTestTelegram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/getUpdates", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("offset"))
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":7,"message":{"message_id":1,"text":"/positions","chat":{"id":42}}},
			{"update_id":8,"callback_query":{"id":"cb1","data":"sell_MintX","message":{"message_id":2,"chat":{"id":42}}}}
		]}`))
	}))

	updates, err := client.Updates(context.Background(), 7, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/positions", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)

	require.NotNil(t, updates[1].Callback)
	assert.Equal(t, "sell_MintX", updates[1].Callback.Data)
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "plain text", "plain text"},
		{"bold", "<b>TKN</b> +50%", "TKN +50%"},
		{"nested", "<a href=\"x\"><code>mint</code></a>", "mint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripTags(tt.in))
		})
	}
}
