package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyExists = errors.New("connection already exists")
)

// Conn is a websocket bound to one user in one room. gorilla/websocket
// allows a single concurrent writer, so every write goes through mu.
type Conn struct {
	RoomID string
	UserID string

	ws *websocket.Conn
	mu sync.Mutex
}

func NewConn(ws *websocket.Conn, roomID, userID string) *Conn {
	return &Conn{
		RoomID: roomID,
		UserID: userID,
		ws:     ws,
	}
}

func (c *Conn) WS() *websocket.Conn {
	return c.ws
}

func (c *Conn) WriteJSON(v any, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}

	return c.ws.WriteJSON(v)
}

func (c *Conn) Close() error {
	return c.ws.Close()
}
