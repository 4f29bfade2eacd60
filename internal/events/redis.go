package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher relays events over redis pub/sub so that other instances can
// deliver them to their own websocket connections.
type RedisPublisher struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(rc *redis.Client, logger *slog.Logger) *RedisPublisher {
	return &RedisPublisher{rc: rc, logger: logger}
}

func Channel(roomID string) string {
	return "room:" + roomID + ":events"
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID string, ev Event) {
	data, err := json.Marshal(envelope{RoomID: roomID, Type: ev.Name, Payload: ev.Payload})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to marshal event", "room_id", roomID, "event", ev.Name, "error", err)
		return
	}

	if err := p.rc.Publish(ctx, Channel(roomID), data).Err(); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event", "room_id", roomID, "event", ev.Name, "error", err)
	}
}
