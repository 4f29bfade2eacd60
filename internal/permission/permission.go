// Package permission decides whether a user may perform an action in a room.
//
// A decision is made in three layers: a static per-role table, then the
// room mode overrides, then the room settings overrides. Roles are derived
// from room fields on every call and never stored.
package permission

import (
	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/internal/domain"
)

type Role string

const (
	RoleOwner       Role = "owner"
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
	RoleMember      Role = "member"
	RoleGuest       Role = "guest"
)

type Action string

const (
	ActionPlaybackControl Action = "playback_control"
	ActionQueueMutate     Action = "queue_mutate"
	ActionRotationJoin    Action = "rotation_join"
	ActionRotationLeave   Action = "rotation_leave"
	ActionSettings        Action = "settings"
	ActionVoteSkip        Action = "vote_skip"
)

var defaultTable = map[Role]map[Action]bool{
	RoleOwner: {
		ActionPlaybackControl: true,
		ActionQueueMutate:     true,
		ActionRotationJoin:    true,
		ActionRotationLeave:   true,
		ActionSettings:        true,
		ActionVoteSkip:        true,
	},
	RoleHost: {
		ActionPlaybackControl: true,
		ActionQueueMutate:     true,
		ActionRotationJoin:    true,
		ActionRotationLeave:   true,
		ActionVoteSkip:        true,
	},
	RoleParticipant: {
		ActionRotationJoin:  true,
		ActionRotationLeave: true,
		ActionVoteSkip:      true,
	},
	RoleMember: {
		ActionRotationJoin:  true,
		ActionRotationLeave: true,
		ActionVoteSkip:      true,
	},
	RoleGuest: {},
}

// ResolveRole returns the highest-authority role the user holds in the room.
func ResolveRole(room *domain.Room, userID string) Role {
	switch {
	case room == nil || userID == "":
		return RoleGuest
	case room.IsOwner(userID):
		return RoleOwner
	case room.IsHost(userID):
		return RoleHost
	case room.Mode == domain.ModeRotation && room.IsActiveParticipant(userID):
		return RoleParticipant
	case room.IsMember(userID):
		return RoleMember
	default:
		return RoleGuest
	}
}

type override func(room *domain.Room, userID string, role Role, action Action, allowed bool) bool

var overrides = []override{
	modeOverride,
	settingsOverride,
}

func modeOverride(room *domain.Room, userID string, role Role, action Action, allowed bool) bool {
	privileged := role == RoleOwner || role == RoleHost

	switch room.Mode {
	case domain.ModeCoop:
		if (role == RoleMember || role == RoleParticipant) &&
			(action == ActionPlaybackControl || action == ActionQueueMutate) {
			return true
		}
	case domain.ModeRotation:
		switch action {
		case ActionPlaybackControl:
			if privileged {
				return allowed
			}
			return role == RoleParticipant && room.IsCurrentParticipant(userID)
		case ActionQueueMutate:
			return privileged && allowed
		}
	case domain.ModeNormal:
		if action == ActionPlaybackControl {
			return privileged
		}
	}

	if room.Mode.Family() == domain.FamilyQueue &&
		(action == ActionRotationJoin || action == ActionRotationLeave) {
		return false
	}

	return allowed
}

func settingsOverride(room *domain.Room, _ string, role Role, action Action, allowed bool) bool {
	switch action {
	case ActionQueueMutate:
		if room.Settings.MembersCanAddToQueue &&
			room.Mode.Family() == domain.FamilyQueue &&
			(role == RoleMember || role == RoleParticipant) {
			return true
		}
	case ActionVoteSkip:
		if !room.Settings.VoteSkipEnabled {
			return false
		}
	}

	return allowed
}

func evaluate(room *domain.Room, userID string, action Action) (Role, bool) {
	role := ResolveRole(room, userID)
	if role == RoleGuest {
		return role, false
	}

	allowed := defaultTable[role][action]
	for _, o := range overrides {
		allowed = o(room, userID, role, action, allowed)
	}

	return role, allowed
}

func Can(room *domain.Room, userID string, action Action) bool {
	_, ok := evaluate(room, userID, action)
	return ok
}

// Require returns a *apperr.PermissionError naming the action and the
// resolved role when the user may not perform the action.
func Require(room *domain.Room, userID string, action Action) error {
	role, ok := evaluate(room, userID, action)
	if !ok {
		return &apperr.PermissionError{Action: string(action), Role: string(role)}
	}

	return nil
}
