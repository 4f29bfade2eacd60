package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/jukebox/internal/repository/connection"
)

type iConnRepo interface {
	RoomConns(roomID string) []*connection.Conn
	UserConns(roomID, userID string) []*connection.Conn
}

// Hub delivers events to the websocket connections of a room.
type Hub struct {
	connRepo     iConnRepo
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewHub(connRepo iConnRepo, writeTimeout time.Duration, logger *slog.Logger) *Hub {
	return &Hub{
		connRepo:     connRepo,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (h *Hub) Publish(ctx context.Context, roomID string, ev Event) {
	var conns []*connection.Conn
	if target := ev.Target(); target != "" {
		conns = h.connRepo.UserConns(roomID, target)
	} else {
		conns = h.connRepo.RoomConns(roomID)
	}

	for _, conn := range conns {
		if err := conn.WriteJSON(&ev, h.writeTimeout); err != nil {
			h.logger.InfoContext(ctx, "failed to write event",
				"room_id", roomID,
				"user_id", conn.UserID,
				"event", ev.Name,
				"error", err,
			)
		}
	}
}
