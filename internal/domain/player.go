package domain

import "strconv"

type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeCoop     Mode = "coop"
	ModeRotation Mode = "rotation"
)

// Family groups modes that share an advance algorithm.
type Family string

const (
	FamilyQueue    Family = "queue"
	FamilyRotation Family = "rotation"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeNormal, ModeCoop, ModeRotation:
		return true
	}

	return false
}

func (m Mode) Family() Family {
	if m == ModeRotation {
		return FamilyRotation
	}

	return FamilyQueue
}

func (f Family) Modes() []Mode {
	if f == FamilyRotation {
		return []Mode{ModeRotation}
	}

	return []Mode{ModeNormal, ModeCoop}
}

// Track is the snapshot of what a room is playing. It is replaced wholesale
// on every advance and never mutated in place by the advance algorithms.
type Track struct {
	ID           string  `json:"id" bson:"id"`
	Title        string  `json:"title" bson:"title"`
	Artist       string  `json:"artist" bson:"artist"`
	Thumbnail    string  `json:"thumbnail" bson:"thumbnail"`
	Duration     float64 `json:"duration" bson:"duration"`
	StreamingURL string  `json:"streaming_url" bson:"streaming_url"`
	// StartedAt is the playback anchor in epoch ms, 0 when unstarted.
	// Resume and seek shift it.
	StartedAt int64 `json:"started_at" bson:"started_at"`
	// Position is authoritative only while paused.
	Position float64 `json:"position" bson:"position"`
	// SessionStartedAt is the epoch ms the track was loaded. It scopes votes.
	SessionStartedAt int64  `json:"session_started_at" bson:"session_started_at"`
	OwnerID          string `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	QueueEntryID     string `json:"queue_entry_id,omitempty" bson:"queue_entry_id,omitempty"`
	Mode             Mode   `json:"mode" bson:"mode"`
	Autoplay         bool   `json:"autoplay" bson:"autoplay"`
}

// SessionKey identifies one playback instance of a track.
type SessionKey struct {
	TrackID   string
	StartedAt int64
}

func (k SessionKey) String() string {
	return k.TrackID + ":" + strconv.FormatInt(k.StartedAt, 10)
}

func (t *Track) SessionKey() SessionKey {
	if t == nil {
		return SessionKey{}
	}

	return SessionKey{TrackID: t.ID, StartedAt: t.SessionStartedAt}
}

func (t *Track) Clone() *Track {
	if t == nil {
		return nil
	}

	c := *t
	return &c
}
