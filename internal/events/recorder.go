package events

import (
	"context"
	"slices"
	"sync"
)

type Recorded struct {
	RoomID string
	Event  Event
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Publish(_ context.Context, roomID string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, Recorded{RoomID: roomID, Event: ev})
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.events)
}

// Names returns the names of the events published for the room, in order.
func (r *Recorder) Names(roomID string) []Name {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []Name
	for _, rec := range r.events {
		if rec.RoomID == roomID {
			names = append(names, rec.Event.Name)
		}
	}

	return names
}

func (r *Recorder) Count(roomID string, name Name) int {
	count := 0
	for _, n := range r.Names(roomID) {
		if n == name {
			count++
		}
	}

	return count
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = nil
}
