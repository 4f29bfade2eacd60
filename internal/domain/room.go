package domain

import (
	"slices"
	"time"
)

const NoParticipant = -1

type Settings struct {
	VoteSkipEnabled bool `json:"vote_skip_enabled" bson:"vote_skip_enabled"`
	// VoteSkipRatio overrides the configured default ratio when > 0.
	// Coop rooms always use the coop ratio.
	VoteSkipRatio float64 `json:"vote_skip_ratio" bson:"vote_skip_ratio"`
	// AutoAdvance lets the rotation skip DJs whose queue is exhausted.
	AutoAdvance bool `json:"auto_advance" bson:"auto_advance"`
	// AutoplayFallback plays a related track when no DJ has anything queued.
	AutoplayFallback bool `json:"autoplay_fallback" bson:"autoplay_fallback"`
	// Autoplay plays related tracks once the shared queue is exhausted.
	Autoplay             bool `json:"autoplay" bson:"autoplay"`
	MembersCanAddToQueue bool `json:"members_can_add_to_queue" bson:"members_can_add_to_queue"`
	MaxParticipantQueue  int  `json:"max_participant_queue" bson:"max_participant_queue"`
	MaxSharedQueue       int  `json:"max_shared_queue" bson:"max_shared_queue"`
}

func DefaultSettings() Settings {
	return Settings{
		VoteSkipEnabled:     true,
		AutoAdvance:         true,
		AutoplayFallback:    false,
		Autoplay:            true,
		MaxParticipantQueue: 25,
		MaxSharedQueue:      100,
	}
}

type Room struct {
	ID                      string        `json:"id" bson:"_id"`
	OwnerID                 string        `json:"owner_id" bson:"owner_id"`
	HostIDs                 []string      `json:"host_ids" bson:"host_ids"`
	Members                 []string      `json:"members" bson:"members"`
	Mode                    Mode          `json:"mode" bson:"mode"`
	IsActive                bool          `json:"is_active" bson:"is_active"`
	IsPlaying               bool          `json:"is_playing" bson:"is_playing"`
	CurrentTrack            *Track        `json:"current_track" bson:"current_track"`
	Queue                   []QueueEntry  `json:"queue" bson:"queue"`
	Participants            []Participant `json:"participants" bson:"participants"`
	CurrentParticipantIndex int           `json:"current_participant_index" bson:"current_participant_index"`
	VoteSkips               []VoteSkip    `json:"vote_skips" bson:"vote_skips"`
	AutoplayCount           int           `json:"autoplay_count" bson:"autoplay_count"`
	Settings                Settings      `json:"settings" bson:"settings"`
	LastSyncAt              int64         `json:"last_sync_at" bson:"last_sync_at"`
	CreatedAt               int64         `json:"created_at" bson:"created_at"`
	Version                 int64         `json:"version" bson:"version"`
}

func NewRoom(id, ownerID string, mode Mode, settings Settings, now time.Time) *Room {
	return &Room{
		ID:                      id,
		OwnerID:                 ownerID,
		Members:                 []string{ownerID},
		Mode:                    mode,
		IsActive:                true,
		CurrentParticipantIndex: NoParticipant,
		Settings:                settings,
		CreatedAt:               now.UnixMilli(),
		LastSyncAt:              now.UnixMilli(),
	}
}

// ReplaceTrack swaps the current track. Every track change is a session
// boundary, so all votes are dropped regardless of the session they were
// cast for.
func (r *Room) ReplaceTrack(t *Track, now time.Time) {
	r.CurrentTrack = t
	r.IsPlaying = t != nil
	r.VoteSkips = nil
	r.LastSyncAt = now.UnixMilli()
}

func (r *Room) Stop(now time.Time) {
	r.ReplaceTrack(nil, now)
}

// IsPlayingTrack reports whether the room has a started, playing track.
func (r *Room) IsPlayingTrack() bool {
	return r.IsActive && r.IsPlaying && r.CurrentTrack != nil
}

func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}

	c := *r
	c.HostIDs = slices.Clone(r.HostIDs)
	c.Members = slices.Clone(r.Members)
	c.CurrentTrack = r.CurrentTrack.Clone()
	c.Queue = slices.Clone(r.Queue)
	c.VoteSkips = slices.Clone(r.VoteSkips)
	c.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		p.Queue = slices.Clone(p.Queue)
		c.Participants[i] = p
	}
	if r.Participants == nil {
		c.Participants = nil
	}

	return &c
}
