package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/repository/room"
)

func newRepo(t *testing.T) (*repo, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})

	return NewRepo(rc, time.Hour), s
}

func TestSaveAndFindOne(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	_, err := r.FindOne(ctx, "missing")
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	rm := domain.NewRoom("r1", "owner", domain.ModeRotation, domain.DefaultSettings(), time.Now())
	rm.Participants = []domain.Participant{{UserID: "dj", Active: true, Queue: []domain.QueueEntry{{ID: "e1", TrackID: "t1"}}}}
	require.NoError(t, r.Save(ctx, rm))
	assert.Equal(t, int64(1), rm.Version)

	got, err := r.FindOne(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rm, got)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	rm := domain.NewRoom("r1", "owner", domain.ModeNormal, domain.DefaultSettings(), time.Now())
	require.NoError(t, r.Save(ctx, rm))

	first, err := r.FindOne(ctx, "r1")
	require.NoError(t, err)
	second, err := r.FindOne(ctx, "r1")
	require.NoError(t, err)

	first.IsPlaying = true
	require.NoError(t, r.Save(ctx, first))

	second.Members = append(second.Members, "late")
	assert.ErrorIs(t, r.Save(ctx, second), room.ErrVersionConflict)
	assert.Equal(t, int64(1), second.Version, "failed save keeps the caller's version")

	stored, err := r.FindOne(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, stored.IsPlaying)
	assert.Equal(t, []string{"owner"}, stored.Members)

	fresh := domain.NewRoom("r1", "other", domain.ModeNormal, domain.DefaultSettings(), time.Now())
	assert.ErrorIs(t, r.Save(ctx, fresh), room.ErrVersionConflict, "a new room cannot overwrite an existing id")
}

func TestConcurrentSavesOnlyOneWins(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()

	rm := domain.NewRoom("r1", "owner", domain.ModeNormal, domain.DefaultSettings(), time.Now())
	require.NoError(t, r.Save(ctx, rm))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := rm.Clone()
			if err := r.Save(ctx, c); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestFindActive(t *testing.T) {
	r, s := newRepo(t)
	ctx := context.Background()
	now := time.Now()

	normal := domain.NewRoom("n1", "o", domain.ModeNormal, domain.DefaultSettings(), now)
	coop := domain.NewRoom("c1", "o", domain.ModeCoop, domain.DefaultSettings(), now)
	rotation := domain.NewRoom("r1", "o", domain.ModeRotation, domain.DefaultSettings(), now)
	for _, rm := range []*domain.Room{normal, coop, rotation} {
		require.NoError(t, r.Save(ctx, rm))
	}

	rooms, err := r.FindActive(ctx, domain.ModeNormal)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "n1", rooms[0].ID)

	rooms, err = r.FindActive(ctx, domain.ModeRotation)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	rotation.IsActive = false
	require.NoError(t, r.Save(ctx, rotation))
	rooms, err = r.FindActive(ctx, domain.ModeRotation)
	require.NoError(t, err)
	assert.Empty(t, rooms)
	assert.True(t, s.TTL("room:r1") > 0, "closed rooms expire")

	s.Del("room:c1")
	rooms, err = r.FindActive(ctx, domain.ModeCoop)
	require.NoError(t, err)
	assert.Empty(t, rooms)
	ok, _ := s.SIsMember("rooms:active:coop", "c1")
	assert.False(t, ok, "dangling ids are pruned")
}
