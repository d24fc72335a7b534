package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"binance-market-sentry/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getMeResult = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"sentry","username":"sentry_bot"}}`

const updatesResult = `{"ok":true,"result":[
	{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"text":"/settings"}},
	{"update_id":11,"callback_query":{"id":"cb1","from":{"id":42,"is_bot":false,"first_name":"a"},"message":{"message_id":2,"date":0,"chat":{"id":43,"type":"private"}},"chat_instance":"x","data":"rsi_60"}},
	{"update_id":12,"edited_message":{"message_id":3,"date":0,"chat":{"id":42,"type":"private"},"text":"edit"}}
]}`

type fakeTelegram struct {
	mu       sync.Mutex
	requests map[string][]map[string]string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	params := map[string]string{}
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	f.requests[method] = append(f.requests[method], params)
	f.mu.Unlock()

	switch method {
	case "getMe":
		_, _ = w.Write([]byte(getMeResult))
	case "sendMessage":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":5,"date":0,"chat":{"id":42,"type":"private"}}}`))
	case "getUpdates":
		_, _ = w.Write([]byte(updatesResult))
	case "answerCallbackQuery":
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func newTestTelegram(t *testing.T) (*TelegramNotifier, *fakeTelegram) {
	t.Helper()
	fake := &fakeTelegram{requests: map[string][]map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tn, err := newTelegramNotifier(types.TelegramConfig{BotToken: "TOKEN", ChatID: 42}, types.NetworkConfig{}, srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return tn, fake
}

func TestNewTelegramNotifier_MissingCredentials(t *testing.T) {
	_, err := NewTelegramNotifier(types.TelegramConfig{BotToken: "x"}, types.NetworkConfig{})
	assert.ErrorIs(t, err, types.ErrMissingCredentials)
}

func TestTelegramNotifier_Send(t *testing.T) {
	tn, fake := newTestTelegram(t)

	err := tn.Send(context.Background(), types.Message{
		Text:     "hello",
		Keyboard: types.Keyboard{{{Text: "开始", Data: "start"}}},
	})
	require.NoError(t, err)

	err = tn.Send(context.Background(), types.Message{ChatID: 7})
	require.NoError(t, err)

	sent := fake.requests["sendMessage"]
	require.Len(t, sent, 2)
	assert.Equal(t, "42", sent[0]["chat_id"])
	assert.Equal(t, "hello", sent[0]["text"])

	var markup struct {
		InlineKeyboard [][]struct {
			Text         string `json:"text"`
			CallbackData string `json:"callback_data"`
		} `json:"inline_keyboard"`
	}
	require.NoError(t, json.Unmarshal([]byte(sent[0]["reply_markup"]), &markup))
	assert.Equal(t, "start", markup.InlineKeyboard[0][0].CallbackData)

	assert.Equal(t, "7", sent[1]["chat_id"])
	assert.Equal(t, UnknownMessage, sent[1]["text"])
}

func TestTelegramNotifier_PollUpdates(t *testing.T) {
	tn, fake := newTestTelegram(t)

	updates, err := tn.PollUpdates(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, updates, 3)

	assert.Equal(t, types.Update{ID: 10, ChatID: 42, Text: "/settings"}, updates[0])
	assert.Equal(t, types.Update{ID: 11, ChatID: 43, Callback: "rsi_60", CallbackID: "cb1"}, updates[1])
	assert.True(t, updates[1].IsCallback())
	assert.Equal(t, types.Update{ID: 12}, updates[2])

	require.Len(t, fake.requests["getUpdates"], 1)
	assert.Equal(t, "10", fake.requests["getUpdates"][0]["offset"])
	require.Len(t, fake.requests["answerCallbackQuery"], 1)
	assert.Equal(t, "cb1", fake.requests["answerCallbackQuery"][0]["callback_query_id"])
}

func TestTelegramNotifier_PollCancelled(t *testing.T) {
	tn, _ := newTestTelegram(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tn.PollUpdates(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}
