package inmemory

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/exp/maps"

	"github.com/sharetube/jukebox/internal/repository/connection"
)

type repo struct {
	connList map[*websocket.Conn]*connection.Conn
	roomList map[string]map[*websocket.Conn]*connection.Conn
	mu       sync.RWMutex
}

func NewRepo() *repo {
	return &repo{
		connList: make(map[*websocket.Conn]*connection.Conn),
		roomList: make(map[string]map[*websocket.Conn]*connection.Conn),
	}
}

func (r *repo) Add(conn *connection.Conn) error {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "room_id", conn.RoomID, "user_id", conn.UserID)
	if _, ok := r.connList[conn.WS()]; ok {
		slog.Info(funcName, "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.connList[conn.WS()] = conn
	room, ok := r.roomList[conn.RoomID]
	if !ok {
		room = make(map[*websocket.Conn]*connection.Conn)
		r.roomList[conn.RoomID] = room
	}
	room[conn.WS()] = conn

	slog.Debug(funcName, "result", "OK")
	return nil
}

func (r *repo) Remove(ws *websocket.Conn) error {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName)
	conn, ok := r.connList[ws]
	if !ok {
		slog.Info(funcName, "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}
	ws.Close()

	delete(r.connList, ws)
	if room, ok := r.roomList[conn.RoomID]; ok {
		delete(room, ws)
		if len(room) == 0 {
			delete(r.roomList, conn.RoomID)
		}
	}

	slog.Debug(funcName, "result", conn.UserID)
	return nil
}

func (r *repo) Get(ws *websocket.Conn) (*connection.Conn, error) {
	funcName := "connection.inmemory.Get"
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connList[ws]
	if !ok {
		slog.Info(funcName, "error", connection.ErrNotFound)
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) RoomConns(roomID string) []*connection.Conn {
	funcName := "connection.inmemory.RoomConns"
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := maps.Values(r.roomList[roomID])
	slog.Debug(funcName, "room_id", roomID, "result", len(conns))
	return conns
}

// UserConns returns every connection the user holds in the room. A user may
// listen from several tabs at once.
func (r *repo) UserConns(roomID, userID string) []*connection.Conn {
	funcName := "connection.inmemory.UserConns"
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []*connection.Conn
	for _, conn := range r.roomList[roomID] {
		if conn.UserID == userID {
			conns = append(conns, conn)
		}
	}

	slog.Debug(funcName, "room_id", roomID, "user_id", userID, "result", len(conns))
	return conns
}

// CloseRoom disconnects everyone in the room.
func (r *repo) CloseRoom(roomID string) int {
	funcName := "connection.inmemory.CloseRoom"
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.roomList[roomID]
	for ws := range room {
		ws.Close()
		delete(r.connList, ws)
	}
	delete(r.roomList, roomID)

	slog.Debug(funcName, "room_id", roomID, "result", len(room))
	return len(room)
}
