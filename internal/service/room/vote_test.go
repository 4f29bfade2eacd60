package room

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/lock"
)

func TestThreshold(t *testing.T) {
	tests := []struct {
		members int
		ratio   float64
		want    int
	}{
		{10, 0.5, 5},
		{7, 0.5, 4},
		{3, 2.0 / 3.0, 2},
		{4, 2.0 / 3.0, 3},
		{1, 0.5, 1},
		{0, 0.5, 1},
		{5, 0, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, threshold(tt.members, tt.ratio), "%d members at %v", tt.members, tt.ratio)
	}
}

func TestRatioSelection(t *testing.T) {
	f := newFixture(t)
	rm := domain.NewRoom("r", "owner", domain.ModeNormal, domain.DefaultSettings(), t0)

	assert.Equal(t, 0.5, f.svc.ratio(rm))

	rm.Settings.VoteSkipRatio = 0.8
	assert.Equal(t, 0.8, f.svc.ratio(rm))

	rm.Mode = domain.ModeCoop
	assert.InDelta(t, 2.0/3.0, f.svc.ratio(rm), 1e-9, "coop rooms always use the coop ratio")
}

func tenMemberRoom(t *testing.T, f *fixture) string {
	t.Helper()

	members := make([]string, 0, 9)
	for i := 1; i <= 9; i++ {
		members = append(members, fmt.Sprintf("u%d", i))
	}

	id := f.createRoom(t, domain.ModeNormal, nil, members...)
	f.queue(t, id, "t1", "t2")
	require.Len(t, f.room(t, id).Members, 10)

	return id
}

func TestVoteThresholdAdvances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := tenMemberRoom(t, f)

	for i := 1; i <= 4; i++ {
		resp, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: fmt.Sprintf("u%d", i)})
		require.NoError(t, err)
		assert.Equal(t, i, resp.Votes)
		assert.Equal(t, 5, resp.Threshold)
		assert.False(t, resp.Met)
		assert.False(t, resp.Advanced)
	}

	tally, err := f.svc.Votes(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, VoteTally{Votes: 4, Threshold: 5, NeedMore: 1}, tally)

	_, err = f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	resp, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u5"})
	require.NoError(t, err)
	assert.True(t, resp.Met)
	assert.Equal(t, 0, resp.NeedMore)
	assert.True(t, resp.Advanced)

	rm := f.room(t, id)
	assert.Equal(t, "t2", rm.CurrentTrack.ID)
	assert.Empty(t, rm.VoteSkips, "votes are cleared by the advance")
	assert.Equal(t, 5, f.rec.Count(id, events.VoteUpdated))
}

func TestVotePassWhileRoomLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := tenMemberRoom(t, f)

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: fmt.Sprintf("u%d", i)})
		require.NoError(t, err)
	}

	key := lock.RoomKey(id)
	ok, err := f.locker.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	resp, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u5"})
	assert.ErrorIs(t, err, ErrRoomBusy)
	assert.True(t, resp.Met)
	assert.False(t, resp.Advanced)

	rm := f.room(t, id)
	assert.Equal(t, "t1", rm.CurrentTrack.ID)
	assert.Len(t, rm.SessionVotes(), 5, "the vote is kept")

	require.NoError(t, f.locker.Release(ctx, key))

	resp, err = f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u5"})
	require.NoError(t, err, "voting again retries the pass")
	assert.True(t, resp.Advanced)
	assert.Equal(t, "t2", f.room(t, id).CurrentTrack.ID)
}

func TestVoteRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := tenMemberRoom(t, f)

	_, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "owner"})
	assert.ErrorIs(t, err, ErrDirectSkipAvailable)

	_, err = f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "stranger"})
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.svc.Pause(ctx, &PlaybackParams{RoomID: id, UserID: "owner"})
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	assert.ErrorIs(t, err, ErrNothingPlaying)

	settings := domain.DefaultSettings()
	settings.VoteSkipEnabled = false
	_, err = f.svc.UpdateSettings(ctx, &UpdateSettingsParams{RoomID: id, SenderID: "owner", Settings: settings})
	require.NoError(t, err)
	_, err = f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	assert.ErrorIs(t, err, ErrVoteSkipDisabled)
}

func TestVotesAreSessionScoped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := tenMemberRoom(t, f)

	_, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	require.NoError(t, err)

	// a leftover vote from an earlier play of the same track must not count
	rm := f.room(t, id)
	stale := domain.SessionKey{TrackID: rm.CurrentTrack.ID, StartedAt: rm.CurrentTrack.SessionStartedAt - 1}
	rm.VoteSkips = append(rm.VoteSkips, domain.VoteSkip{UserID: "u2", SessionKey: stale.String()})
	require.NoError(t, f.store.Save(ctx, rm))

	tally, err := f.svc.Votes(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Votes)

	resp, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u2"})
	require.NoError(t, err, "a vote for another session does not block a new one")
	assert.Equal(t, 2, resp.Votes)

	tally, err = f.svc.Unvote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, tally.Votes)

	tally, err = f.svc.Unvote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	require.NoError(t, err, "unvoting without a vote is a no-op")
	assert.Equal(t, 1, tally.Votes)
}

func TestDirectSkipKeepsVotesUntilTrackChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := tenMemberRoom(t, f)

	_, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "u1"})
	require.NoError(t, err)

	f.now = t0.Add(time.Second)
	_, err = f.svc.Skip(ctx, &SkipParams{RoomID: id, UserID: "owner"})
	require.NoError(t, err)

	rm := f.room(t, id)
	assert.Equal(t, "t2", rm.CurrentTrack.ID)
	assert.Empty(t, rm.VoteSkips)
}

func TestCoopVoteByMemberIsDirectSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createRoom(t, domain.ModeCoop, nil, "alice")
	f.queue(t, id, "t1")

	_, err := f.svc.Vote(ctx, &VoteParams{RoomID: id, UserID: "alice"})
	assert.ErrorIs(t, err, ErrDirectSkipAvailable)
}
