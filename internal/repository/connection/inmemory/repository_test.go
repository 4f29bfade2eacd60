package inmemory

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/jukebox/internal/repository/connection"
)

func dial(t *testing.T) *websocket.Conn {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return <-accepted
}

func TestRepo(t *testing.T) {
	r := NewRepo()

	ws1, ws2, ws3 := dial(t), dial(t), dial(t)
	require.NoError(t, r.Add(connection.NewConn(ws1, "room-1", "alice")))
	require.NoError(t, r.Add(connection.NewConn(ws2, "room-1", "alice")))
	require.NoError(t, r.Add(connection.NewConn(ws3, "room-1", "bob")))

	assert.ErrorIs(t, r.Add(connection.NewConn(ws1, "room-1", "alice")), connection.ErrAlreadyExists)

	assert.Len(t, r.RoomConns("room-1"), 3)
	assert.Len(t, r.UserConns("room-1", "alice"), 2)
	assert.Empty(t, r.RoomConns("room-2"))

	conn, err := r.Get(ws3)
	require.NoError(t, err)
	assert.Equal(t, "bob", conn.UserID)

	require.NoError(t, r.Remove(ws1))
	assert.ErrorIs(t, r.Remove(ws1), connection.ErrNotFound)
	assert.Len(t, r.UserConns("room-1", "alice"), 1)

	assert.Equal(t, 2, r.CloseRoom("room-1"))
	assert.Empty(t, r.RoomConns("room-1"))
	_, err = r.Get(ws3)
	assert.ErrorIs(t, err, connection.ErrNotFound)
}
