package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, router *WSRouter) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		router.ServeConn(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	return conn
}

func TestServeConn(t *testing.T) {
	router := New()

	var (
		mu    sync.Mutex
		order []string
	)
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	router.Use(func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
			record("mw:" + GetMessageTypeFromCtx(ctx))
			return next(ctx, conn, payload)
		}
	})
	router.OnError(func(_ context.Context, conn *websocket.Conn, err error) {
		conn.WriteJSON(map[string]string{"error": err.Error()})
	})

	router.Handle("echo", func(_ context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		record("echo")
		return conn.WriteJSON(map[string]json.RawMessage{"echo": payload})
	})
	router.Handle("fail", func(context.Context, *websocket.Conn, json.RawMessage) error {
		return errors.New("boom")
	})

	conn := newServer(t, router)

	var out map[string]any
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "echo", "payload": map[string]int{"n": 1}}))
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, map[string]any{"n": float64(1)}, out["echo"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "fail"}))
	out = nil
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "boom", out["error"])

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "nope"}))
	out = nil
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, ErrUnknownType.Error(), out["error"])

	// the connection survives handler errors
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "echo", "payload": "again"}))
	out = nil
	require.NoError(t, conn.ReadJSON(&out))
	assert.Equal(t, "again", out["echo"])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"mw:echo", "echo", "mw:fail", "mw:echo", "echo"}, order)
}

func TestGetMessageTypeFromCtx(t *testing.T) {
	assert.Equal(t, "", GetMessageTypeFromCtx(context.Background()))
	assert.Equal(t, "alive", GetMessageTypeFromCtx(context.WithValue(context.Background(), messageTypeKey, "alive")))
}
