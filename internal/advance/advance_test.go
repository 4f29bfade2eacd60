package advance

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/provider"
)

type fakeRelated struct {
	calls int
	err   error
	none  bool
}

func (f *fakeRelated) GetRelatedTrack(_ context.Context, seedID string) (*provider.Track, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.none {
		return nil, nil
	}

	return &provider.Track{ID: "rel-" + seedID, Title: "Related", Duration: 120}, nil
}

func entries(prefix string, n int) []domain.QueueEntry {
	es := make([]domain.QueueEntry, n)
	for i := range es {
		id := prefix + string(rune('1'+i))
		es[i] = domain.QueueEntry{ID: "e-" + id, TrackID: id, Duration: 180, AddedBy: prefix}
	}

	return es
}

func eventNames(evs []events.Event) []events.Name {
	names := make([]events.Name, len(evs))
	for i, ev := range evs {
		names[i] = ev.Name
	}

	return names
}

func TestNextActiveIndex(t *testing.T) {
	ps := []domain.Participant{
		{UserID: "a", Active: true},
		{UserID: "b", Active: false},
		{UserID: "c", Active: true},
	}

	assert.Equal(t, 2, NextActiveIndex(ps, 0))
	assert.Equal(t, 0, NextActiveIndex(ps, 2))
	assert.Equal(t, 2, NextActiveIndex(ps, 1))
	assert.Equal(t, 0, NextActiveIndex(ps, domain.NoParticipant))
	assert.Equal(t, 0, NextActiveIndex(ps, 17))

	ps[2].Active = false
	assert.Equal(t, 0, NextActiveIndex(ps, 0), "a lone active participant follows themselves")

	ps[0].Active = false
	assert.Equal(t, domain.NoParticipant, NextActiveIndex(ps, 0))
	assert.Equal(t, domain.NoParticipant, NextActiveIndex(nil, 0))
}

func rotationRoom(now time.Time) *domain.Room {
	room := domain.NewRoom("r1", "owner", domain.ModeRotation, domain.DefaultSettings(), now)
	room.Participants = []domain.Participant{
		{UserID: "a", Active: true, Queue: entries("a", 3)},
		{UserID: "b", Active: false, Queue: entries("b", 3)},
		{UserID: "c", Active: true, Queue: entries("c", 3)},
	}

	return room
}

func TestRotationWraparound(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	room := rotationRoom(now)
	room.CurrentParticipantIndex = 0
	room.CurrentTrack = room.Participants[0].Queue[0].ToTrack(domain.ModeRotation, "a", now.UnixMilli())
	room.IsPlaying = true
	room.Participants[0].Cursor = 1

	alg := NewRotation(Config{AutoplayMax: 5}, nil, slog.Default())
	ctx := context.Background()

	res, err := alg.Advance(ctx, room, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OutcomePlayed, res.Outcome)
	assert.Equal(t, 0, res.PreviousParticipant)
	assert.Equal(t, 2, res.Participant)
	assert.Equal(t, 2, room.CurrentParticipantIndex)
	assert.Equal(t, "c1", room.CurrentTrack.ID)
	assert.Equal(t, "c", room.CurrentTrack.OwnerID)
	assert.Equal(t, now.Add(time.Minute).UnixMilli(), room.CurrentTrack.StartedAt)
	assert.Equal(t, 1, room.Participants[2].Cursor)
	assert.Equal(t, []events.Name{events.TrackEnded, events.RotationAdvanced, events.TrackStarted}, eventNames(res.Events))

	res, err = alg.Advance(ctx, room, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Participant)
	assert.Equal(t, "a2", room.CurrentTrack.ID)
	assert.Equal(t, 0, room.Participants[1].Cursor, "inactive participants are never consumed")
}

func TestRotationClearsVotes(t *testing.T) {
	now := time.Now()
	room := rotationRoom(now)
	room.CurrentTrack = &domain.Track{ID: "x", StartedAt: 1, SessionStartedAt: 1}
	room.IsPlaying = true
	room.VoteSkips = []domain.VoteSkip{{UserID: "u", SessionKey: "x:1"}}

	_, err := NewRotation(Config{}, nil, slog.Default()).Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Empty(t, room.VoteSkips)
}

func TestRotationSkipsExhaustedWithAutoAdvance(t *testing.T) {
	now := time.Now()
	room := rotationRoom(now)
	room.Participants[1].Active = true
	room.Participants[1].Cursor = 3
	room.CurrentParticipantIndex = 0

	res, err := NewRotation(Config{}, nil, slog.Default()).Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Participant, "exhausted b is skipped")
	assert.Equal(t, "c1", room.CurrentTrack.ID)
}

func TestRotationStopsOnExhaustedWithoutAutoAdvance(t *testing.T) {
	now := time.Now()
	room := rotationRoom(now)
	room.Settings.AutoAdvance = false
	room.Participants[2].Cursor = 3
	room.CurrentParticipantIndex = 0
	room.CurrentTrack = &domain.Track{ID: "a1", StartedAt: 1}
	room.IsPlaying = true

	res, err := NewRotation(Config{}, nil, slog.Default()).Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, res.Outcome)
	assert.Equal(t, 2, room.CurrentParticipantIndex)
	assert.Nil(t, room.CurrentTrack)
	assert.False(t, room.IsPlaying)
}

func TestRotationIdle(t *testing.T) {
	now := time.Now()
	room := rotationRoom(now)
	room.Participants[0].Cursor = 3
	room.Participants[2].Cursor = 3
	room.CurrentParticipantIndex = 2
	room.CurrentTrack = &domain.Track{ID: "c3", StartedAt: 1}
	room.IsPlaying = true

	related := &fakeRelated{}
	res, err := NewRotation(Config{AutoplayMax: 5}, related, slog.Default()).Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIdle, res.Outcome)
	assert.Equal(t, domain.NoParticipant, room.CurrentParticipantIndex)
	assert.Nil(t, room.CurrentTrack)
	assert.Equal(t, 0, related.calls, "fallback is disabled by default")
	assert.Equal(t, []events.Name{events.TrackEnded, events.RotationIdle}, eventNames(res.Events))
}

func TestRotationAutoplayFallback(t *testing.T) {
	now := time.Now()
	room := rotationRoom(now)
	room.Settings.AutoplayFallback = true
	room.Participants[0].Cursor = 3
	room.Participants[2].Cursor = 3
	room.CurrentParticipantIndex = 0
	room.CurrentTrack = &domain.Track{ID: "a3", StartedAt: 1, OwnerID: "a"}
	room.IsPlaying = true

	related := &fakeRelated{}
	alg := NewRotation(Config{AutoplayMax: 5}, related, slog.Default())

	res, err := alg.Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAutoplayed, res.Outcome)
	require.NotNil(t, room.CurrentTrack)
	assert.Equal(t, "rel-a3", room.CurrentTrack.ID)
	assert.Empty(t, room.CurrentTrack.OwnerID, "fallback tracks are untagged")
	assert.True(t, room.CurrentTrack.Autoplay)
	assert.Equal(t, domain.NoParticipant, room.CurrentParticipantIndex)
	assert.Equal(t, 1, room.AutoplayCount)

	room.Participants[2].Queue = append(room.Participants[2].Queue, domain.QueueEntry{ID: "e-c4", TrackID: "c4"})
	res, err = alg.Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomePlayed, res.Outcome)
	assert.Equal(t, "c4", room.CurrentTrack.ID)
	assert.Equal(t, 0, room.AutoplayCount, "a DJ track resets the autoplay counter")
}

func queueRoom(now time.Time) *domain.Room {
	room := domain.NewRoom("q1", "owner", domain.ModeNormal, domain.DefaultSettings(), now)
	room.Queue = entries("q", 3)
	return room
}

func TestQueueConsumesEntries(t *testing.T) {
	now := time.Now()
	room := queueRoom(now)
	alg := NewQueue(Config{AutoplayMax: 5}, &fakeRelated{}, slog.Default())
	ctx := context.Background()

	res, err := alg.Advance(ctx, room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomePlayed, res.Outcome)
	assert.Equal(t, "q1", room.CurrentTrack.ID)
	assert.Equal(t, "e-q1", room.CurrentTrack.QueueEntryID)
	assert.Len(t, room.Queue, 3, "the playing entry stays at the head")

	_, err = alg.Advance(ctx, room, now)
	require.NoError(t, err)
	assert.Equal(t, "q2", room.CurrentTrack.ID)
	assert.Len(t, room.Queue, 2)
	assert.Equal(t, "e-q2", room.Queue[0].ID)

	_, err = alg.Advance(ctx, room, now)
	require.NoError(t, err)
	assert.Equal(t, "q3", room.CurrentTrack.ID)
	assert.Len(t, room.Queue, 1)
}

func TestQueueAutoplayCap(t *testing.T) {
	now := time.Now()
	room := queueRoom(now)
	room.Queue = nil
	room.CurrentTrack = &domain.Track{ID: "seed", StartedAt: 1}
	room.IsPlaying = true

	related := &fakeRelated{}
	alg := NewQueue(Config{AutoplayMax: 5}, related, slog.Default())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := alg.Advance(ctx, room, now)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAutoplayed, res.Outcome, "advance %d", i)
		assert.Equal(t, i, room.AutoplayCount)
		assert.True(t, room.IsPlaying)
	}

	res, err := alg.Advance(ctx, room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, res.Outcome, "a 6th consecutive autoplay must not happen")
	assert.False(t, room.IsPlaying)
	assert.Nil(t, room.CurrentTrack)
	assert.Equal(t, 0, room.AutoplayCount)
	assert.Equal(t, 5, related.calls)
}

func TestQueueAutoplayProviderFailureStops(t *testing.T) {
	now := time.Now()
	room := queueRoom(now)
	room.Queue = nil
	room.CurrentTrack = &domain.Track{ID: "seed", StartedAt: 1}
	room.IsPlaying = true
	room.AutoplayCount = 2

	res, err := NewQueue(Config{AutoplayMax: 5}, &fakeRelated{err: errors.New("down")}, slog.Default()).
		Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, res.Outcome)
	assert.Equal(t, 0, room.AutoplayCount)

	room.CurrentTrack = &domain.Track{ID: "seed", StartedAt: 1}
	res, err = NewQueue(Config{AutoplayMax: 5}, &fakeRelated{none: true}, slog.Default()).
		Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeStopped, res.Outcome)
}

func TestQueueUserTrackResetsAutoplayCounter(t *testing.T) {
	now := time.Now()
	room := queueRoom(now)
	room.CurrentTrack = &domain.Track{ID: "auto", StartedAt: 1, Autoplay: true}
	room.IsPlaying = true
	room.AutoplayCount = 4

	res, err := NewQueue(Config{AutoplayMax: 5}, &fakeRelated{}, slog.Default()).Advance(context.Background(), room, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomePlayed, res.Outcome)
	assert.Equal(t, "q1", room.CurrentTrack.ID)
	assert.Equal(t, 0, room.AutoplayCount)
}

func TestSelector(t *testing.T) {
	s := NewSelector(Config{AutoplayMax: 5}, nil, slog.Default())

	assert.IsType(t, &Queue{}, s.For(domain.ModeNormal))
	assert.IsType(t, &Queue{}, s.For(domain.ModeCoop))
	assert.IsType(t, &Rotation{}, s.For(domain.ModeRotation))
}
