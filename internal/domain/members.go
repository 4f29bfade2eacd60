package domain

import "slices"

// Participant is a DJ in a rotation room. Participants are soft-removed by
// clearing Active and are never deleted from the room.
type Participant struct {
	UserID       string       `json:"user_id" bson:"user_id"`
	DisplayName  string       `json:"display_name" bson:"display_name"`
	Queue        []QueueEntry `json:"queue" bson:"queue"`
	Cursor       int          `json:"cursor" bson:"cursor"`
	Active       bool         `json:"active" bson:"active"`
	JoinedAt     int64        `json:"joined_at" bson:"joined_at"`
	LastActiveAt int64        `json:"last_active_at" bson:"last_active_at"`
}

func (p Participant) HasNext() bool {
	return p.Cursor >= 0 && p.Cursor < len(p.Queue)
}

func (p Participant) Upcoming() []QueueEntry {
	if !p.HasNext() {
		return nil
	}

	return p.Queue[p.Cursor:]
}

// VoteSkip is one user's vote against one playback session.
type VoteSkip struct {
	UserID     string `json:"user_id" bson:"user_id"`
	SessionKey string `json:"session_key" bson:"session_key"`
	CreatedAt  int64  `json:"created_at" bson:"created_at"`
}

func (r *Room) IsMember(userID string) bool {
	return userID != "" && slices.Contains(r.Members, userID)
}

func (r *Room) IsHost(userID string) bool {
	return userID != "" && slices.Contains(r.HostIDs, userID)
}

func (r *Room) IsOwner(userID string) bool {
	return userID != "" && r.OwnerID == userID
}

// ParticipantIndex returns the index of the user's participant entry,
// active or not, or -1.
func (r *Room) ParticipantIndex(userID string) int {
	return slices.IndexFunc(r.Participants, func(p Participant) bool {
		return p.UserID == userID
	})
}

// IsActiveParticipant reports whether the user is an active DJ.
func (r *Room) IsActiveParticipant(userID string) bool {
	i := r.ParticipantIndex(userID)
	return i >= 0 && r.Participants[i].Active
}

func (r *Room) CurrentParticipant() (Participant, bool) {
	i := r.CurrentParticipantIndex
	if i < 0 || i >= len(r.Participants) {
		return Participant{}, false
	}

	return r.Participants[i], true
}

func (r *Room) IsCurrentParticipant(userID string) bool {
	p, ok := r.CurrentParticipant()
	return ok && p.Active && p.UserID == userID
}

func (r *Room) ActiveParticipantsCount() int {
	count := 0
	for _, p := range r.Participants {
		if p.Active {
			count++
		}
	}

	return count
}

// SessionVotes returns the votes cast against the current playback session.
func (r *Room) SessionVotes() []VoteSkip {
	if r.CurrentTrack == nil {
		return nil
	}

	key := r.CurrentTrack.SessionKey().String()
	votes := make([]VoteSkip, 0, len(r.VoteSkips))
	for _, v := range r.VoteSkips {
		if v.SessionKey == key {
			votes = append(votes, v)
		}
	}

	return votes
}

func (r *Room) HasVoted(userID, sessionKey string) bool {
	return slices.ContainsFunc(r.VoteSkips, func(v VoteSkip) bool {
		return v.UserID == userID && v.SessionKey == sessionKey
	})
}

func (r *Room) RemoveVote(userID, sessionKey string) bool {
	before := len(r.VoteSkips)
	r.VoteSkips = slices.DeleteFunc(r.VoteSkips, func(v VoteSkip) bool {
		return v.UserID == userID && v.SessionKey == sessionKey
	})

	return len(r.VoteSkips) != before
}
