package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

type NATSPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewNATSPublisher(nc *nats.Conn, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, logger: logger}
}

func Subject(roomID string) string {
	return "rooms." + roomID + ".events"
}

func (p *NATSPublisher) Publish(ctx context.Context, roomID string, ev Event) {
	data, err := json.Marshal(envelope{RoomID: roomID, Type: ev.Name, Payload: ev.Payload})
	if err != nil {
		p.logger.WarnContext(ctx, "failed to marshal event", "room_id", roomID, "event", ev.Name, "error", err)
		return
	}

	if err := p.nc.Publish(Subject(roomID), data); err != nil {
		p.logger.WarnContext(ctx, "failed to publish event", "room_id", roomID, "event", ev.Name, "error", err)
	}
}
