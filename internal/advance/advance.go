// Package advance selects and loads the next track of a room. Algorithms only
// mutate the room they are given; persisting it and publishing the returned
// events is the caller's job.
package advance

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/provider"
)

type Outcome string

const (
	OutcomePlayed     Outcome = "played"
	OutcomeAutoplayed Outcome = "autoplayed"
	OutcomeStopped    Outcome = "stopped"
	OutcomeIdle       Outcome = "idle"
)

type Result struct {
	Outcome Outcome
	Ended   *domain.Track
	Started *domain.Track
	// PreviousParticipant and Participant are rotation indexes, NoParticipant
	// in queue rooms.
	PreviousParticipant int
	Participant         int
	Events              []events.Event
}

type Algorithm interface {
	Advance(ctx context.Context, room *domain.Room, now time.Time) (Result, error)
}

type RelatedProvider interface {
	GetRelatedTrack(ctx context.Context, seedID string) (*provider.Track, error)
}

type Config struct {
	// AutoplayMax caps consecutive unattended autoplay advances.
	AutoplayMax int
}

// Selector picks the algorithm for a room from its mode family.
type Selector struct {
	Queue    Algorithm
	Rotation Algorithm
}

func NewSelector(cfg Config, related RelatedProvider, logger *slog.Logger) Selector {
	return Selector{
		Queue:    NewQueue(cfg, related, logger),
		Rotation: NewRotation(cfg, related, logger),
	}
}

func (s Selector) For(mode domain.Mode) Algorithm {
	if mode.Family() == domain.FamilyRotation {
		return s.Rotation
	}

	return s.Queue
}

// NextActiveIndex scans circularly from the slot after current and returns
// the first active participant, current included as the last candidate. It
// returns NoParticipant when nobody is active.
func NextActiveIndex(participants []domain.Participant, current int) int {
	n := len(participants)
	if current < 0 || current >= n {
		current = -1
	}

	for step := 1; step <= n; step++ {
		i := (current + step) % n
		if participants[i].Active {
			return i
		}
	}

	return domain.NoParticipant
}

// relatedTrack asks the provider for an autoplay track seeded by seed. Any
// failure means there is nothing to play.
func relatedTrack(ctx context.Context, related RelatedProvider, logger *slog.Logger, room *domain.Room, seed *domain.Track, limit int, now time.Time) *domain.Track {
	if related == nil || seed == nil || room.AutoplayCount >= limit {
		return nil
	}

	t, err := related.GetRelatedTrack(ctx, seed.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to get related track", "room_id", room.ID, "seed_id", seed.ID, "error", err)
		return nil
	}
	if t == nil {
		return nil
	}

	nowMs := now.UnixMilli()
	return &domain.Track{
		ID:               t.ID,
		Title:            t.Title,
		Artist:           t.Artist,
		Thumbnail:        t.Thumbnail,
		Duration:         t.Duration,
		StreamingURL:     t.StreamingURL,
		StartedAt:        nowMs,
		SessionStartedAt: nowMs,
		Mode:             room.Mode,
		Autoplay:         true,
	}
}

func trackEnded(t *domain.Track) events.Event {
	return events.New(events.TrackEnded, events.Payload{"track": t})
}

func trackStarted(t *domain.Track) events.Event {
	return events.New(events.TrackStarted, events.Payload{"track": t, "autoplay": t.Autoplay})
}
