// Package events defines the outbound room notifications and the publishers
// that deliver them. Publishing is fire-and-forget: delivery failures are
// logged and never returned to the caller.
package events

import (
	"context"
)

type Name string

const (
	PrepareNext         Name = "prepare-next"
	TrackEndingSoon     Name = "track-ending-soon"
	TrackStarted        Name = "track-started"
	TrackEnded          Name = "track-ended"
	RotationAdvanced    Name = "rotation-advanced"
	RotationIdle        Name = "rotation-idle"
	ParticipantInactive Name = "participant-inactive"

	VoteUpdated     Name = "vote-updated"
	PlaybackUpdated Name = "playback-updated"
	QueueUpdated    Name = "queue-updated"
	RotationUpdated Name = "rotation-updated"
	RoomUpdated     Name = "room-updated"
	RoomClosed      Name = "room-closed"
)

// TargetUserKey in a payload restricts delivery to one user.
const TargetUserKey = "target_user_id"

type Payload map[string]any

type Event struct {
	Name    Name    `json:"type"`
	Payload Payload `json:"payload"`
}

func New(name Name, payload Payload) Event {
	if payload == nil {
		payload = Payload{}
	}

	return Event{Name: name, Payload: payload}
}

// Target returns the user the event is addressed to, or "" for the whole room.
func (e Event) Target() string {
	target, _ := e.Payload[TargetUserKey].(string)
	return target
}

type Publisher interface {
	Publish(ctx context.Context, roomID string, ev Event)
}

// PublishAll publishes events in order.
func PublishAll(ctx context.Context, p Publisher, roomID string, evs []Event) {
	for _, ev := range evs {
		p.Publish(ctx, roomID, ev)
	}
}

// Multi fans every event out to all of its publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, roomID string, ev Event) {
	for _, p := range m {
		p.Publish(ctx, roomID, ev)
	}
}

type envelope struct {
	RoomID  string  `json:"room_id"`
	Type    Name    `json:"type"`
	Payload Payload `json:"payload"`
}
