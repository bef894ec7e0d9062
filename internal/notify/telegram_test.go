package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	getMe    int
	texts    []string
	chatIDs  []string
	failSend bool
}

func (f *fakeBotAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = r.ParseForm()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			f.getMe++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":     true,
				"result": map[string]interface{}{"id": 42, "is_bot": true, "first_name": "inspector", "username": "inspector_bot"},
			})
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if f.failSend {
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"ok": false, "error_code": 400, "description": "Bad Request: chat not found",
				})
				return
			}
			f.texts = append(f.texts, r.FormValue("text"))
			f.chatIDs = append(f.chatIDs, r.FormValue("chat_id"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"ok":     true,
				"result": map[string]interface{}{"message_id": len(f.texts), "date": 0, "chat": map[string]interface{}{"id": -1001, "type": "group"}},
			})
		default:
			http.NotFound(w, r)
		}
	})
}

func newTestTelegramNotifier(t *testing.T, fake *fakeBotAPI) *TelegramNotifier {
	t.Helper()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	n := NewTelegramNotifier("123:abc", -1001, time.Second)
	n.endpoint = server.URL + "/bot%s/%s"
	return n
}

func TestTelegramNotifier_Send(t *testing.T) {
	fake := &fakeBotAPI{}
	n := newTestTelegramNotifier(t, fake)

	subject, body := Message("Main St", 0.87)
	require.NoError(t, n.Send(context.Background(), subject, body))
	require.NoError(t, n.Send(context.Background(), subject, body))

	require.Equal(t, 1, fake.getMe, "bot should be authorized once")
	require.Len(t, fake.texts, 2)
	require.Equal(t, "Garbage Detected!\n\nStreet - Main St is found to be unclean with confidence 0.87.", fake.texts[0])
	require.Equal(t, "-1001", fake.chatIDs[0])
}

func TestTelegramNotifier_SendFailure(t *testing.T) {
	n := newTestTelegramNotifier(t, &fakeBotAPI{failSend: true})

	err := n.Send(context.Background(), Subject, "body")
	require.Error(t, err)
	require.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifier_MissingConfig(t *testing.T) {
	require.ErrorIs(t, NewTelegramNotifier("", -1001, 0).Send(context.Background(), Subject, "b"), ErrMissingTelegramConfig)
	require.ErrorIs(t, NewTelegramNotifier("123:abc", 0, 0).Send(context.Background(), Subject, "b"), ErrMissingTelegramConfig)
}

func TestTelegramNotifier_ThroughGate(t *testing.T) {
	fake := &fakeBotAPI{}
	gate := NewGate(newTestTelegramNotifier(t, fake), "Main St", time.Second)

	out := gate.MaybeNotify(context.Background(), garbageAt(0.01))
	require.Equal(t, Sent, out.Status)
	require.Len(t, fake.texts, 1)
}
