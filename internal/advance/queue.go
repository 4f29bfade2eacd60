package advance

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
)

// Queue plays the shared queue in order and falls back to autoplay once it
// runs dry. The entry being played stays at the head of the queue and is
// consumed by the next advance.
type Queue struct {
	cfg     Config
	related RelatedProvider
	logger  *slog.Logger
}

func NewQueue(cfg Config, related RelatedProvider, logger *slog.Logger) *Queue {
	return &Queue{cfg: cfg, related: related, logger: logger}
}

func (a *Queue) Advance(ctx context.Context, room *domain.Room, now time.Time) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		Ended:               room.CurrentTrack.Clone(),
		PreviousParticipant: domain.NoParticipant,
		Participant:         domain.NoParticipant,
	}
	if res.Ended != nil {
		res.Events = append(res.Events, trackEnded(res.Ended))
	}

	remaining := room.Queue
	if res.Ended != nil {
		if i := domain.IndexOfEntry(room.Queue, res.Ended.QueueEntryID); i >= 0 {
			remaining = room.Queue[i+1:]
		}
	}
	consumed := len(room.Queue) - len(remaining)
	room.Queue = slices.Clone(remaining)

	if len(room.Queue) > 0 {
		entry := room.Queue[0]
		track := entry.ToTrack(room.Mode, entry.AddedBy, now.UnixMilli())
		track.QueueEntryID = entry.ID

		room.ReplaceTrack(track, now)
		room.AutoplayCount = 0

		res.Outcome = OutcomePlayed
		res.Started = track.Clone()
		res.Events = append(res.Events, queueUpdated(room), trackStarted(res.Started))
		return res, nil
	}

	if room.Settings.Autoplay {
		if track := relatedTrack(ctx, a.related, a.logger, room, res.Ended, a.cfg.AutoplayMax, now); track != nil {
			room.ReplaceTrack(track, now)
			room.AutoplayCount++

			res.Outcome = OutcomeAutoplayed
			res.Started = track.Clone()
			if consumed > 0 {
				res.Events = append(res.Events, queueUpdated(room))
			}
			res.Events = append(res.Events, trackStarted(res.Started))
			return res, nil
		}
	}

	room.Stop(now)
	room.AutoplayCount = 0

	res.Outcome = OutcomeStopped
	if consumed > 0 {
		res.Events = append(res.Events, queueUpdated(room))
	}
	res.Events = append(res.Events, events.New(events.PlaybackUpdated, events.Payload{
		"is_playing":    false,
		"current_track": nil,
	}))
	return res, nil
}

func queueUpdated(room *domain.Room) events.Event {
	return events.New(events.QueueUpdated, events.Payload{"queue": room.Queue})
}
