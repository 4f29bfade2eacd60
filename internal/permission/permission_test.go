package permission

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/internal/domain"
)

func newRoom(mode domain.Mode) *domain.Room {
	room := domain.NewRoom("room-1", "owner", mode, domain.DefaultSettings(), time.Now())
	room.HostIDs = []string{"host"}
	room.Members = append(room.Members, "host", "dj-a", "dj-b", "member")
	room.Participants = []domain.Participant{
		{UserID: "dj-a", Active: true},
		{UserID: "dj-b", Active: true},
	}
	room.CurrentParticipantIndex = 0

	return room
}

func TestResolveRole(t *testing.T) {
	room := newRoom(domain.ModeRotation)

	assert.Equal(t, RoleOwner, ResolveRole(room, "owner"))
	assert.Equal(t, RoleHost, ResolveRole(room, "host"))
	assert.Equal(t, RoleParticipant, ResolveRole(room, "dj-a"))
	assert.Equal(t, RoleMember, ResolveRole(room, "member"))
	assert.Equal(t, RoleGuest, ResolveRole(room, "stranger"))
	assert.Equal(t, RoleGuest, ResolveRole(room, ""))

	room.Participants[1].Active = false
	assert.Equal(t, RoleMember, ResolveRole(room, "dj-b"), "soft-removed participant falls back to member")

	assert.Equal(t, RoleMember, ResolveRole(newRoom(domain.ModeNormal), "dj-a"), "participants only exist in rotation rooms")
}

func TestNormalModePlaybackIsHostOnly(t *testing.T) {
	room := newRoom(domain.ModeNormal)

	assert.True(t, Can(room, "owner", ActionPlaybackControl))
	assert.True(t, Can(room, "host", ActionPlaybackControl))
	assert.False(t, Can(room, "member", ActionPlaybackControl))
	assert.False(t, Can(room, "member", ActionQueueMutate))
	assert.True(t, Can(room, "member", ActionVoteSkip))
	assert.False(t, Can(room, "member", ActionRotationJoin))
}

func TestCoopGrantsMembers(t *testing.T) {
	room := newRoom(domain.ModeCoop)

	assert.True(t, Can(room, "member", ActionPlaybackControl))
	assert.True(t, Can(room, "member", ActionQueueMutate))
	assert.False(t, Can(room, "member", ActionSettings))
	assert.False(t, Can(room, "stranger", ActionPlaybackControl))
}

func TestRotationPlaybackFollowsCurrentDJ(t *testing.T) {
	room := newRoom(domain.ModeRotation)

	assert.True(t, Can(room, "dj-a", ActionPlaybackControl))
	assert.False(t, Can(room, "dj-b", ActionPlaybackControl))
	assert.False(t, Can(room, "member", ActionPlaybackControl))
	assert.True(t, Can(room, "host", ActionPlaybackControl))

	room.CurrentParticipantIndex = 1
	assert.False(t, Can(room, "dj-a", ActionPlaybackControl))
	assert.True(t, Can(room, "dj-b", ActionPlaybackControl))

	assert.False(t, Can(room, "dj-a", ActionQueueMutate))
	assert.True(t, Can(room, "host", ActionQueueMutate))
	assert.True(t, Can(room, "member", ActionRotationJoin))
}

func TestSettingsOverrides(t *testing.T) {
	room := newRoom(domain.ModeNormal)
	room.Settings.MembersCanAddToQueue = true
	assert.True(t, Can(room, "member", ActionQueueMutate))
	assert.False(t, Can(room, "member", ActionPlaybackControl))

	rotation := newRoom(domain.ModeRotation)
	rotation.Settings.MembersCanAddToQueue = true
	assert.False(t, Can(rotation, "member", ActionQueueMutate), "shared queue stays closed in rotation rooms")

	room.Settings.VoteSkipEnabled = false
	assert.False(t, Can(room, "member", ActionVoteSkip))
	assert.False(t, Can(room, "owner", ActionVoteSkip))
}

func TestRequire(t *testing.T) {
	room := newRoom(domain.ModeNormal)

	require.NoError(t, Require(room, "owner", ActionSettings))

	err := Require(room, "member", ActionSettings)
	require.Error(t, err)

	var permErr *apperr.PermissionError
	require.True(t, errors.As(err, &permErr))
	assert.Equal(t, string(ActionSettings), permErr.Action)
	assert.Equal(t, string(RoleMember), permErr.Role)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	err = Require(room, "stranger", ActionVoteSkip)
	require.True(t, errors.As(err, &permErr))
	assert.Equal(t, string(RoleGuest), permErr.Role)
}
