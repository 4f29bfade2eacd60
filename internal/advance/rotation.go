package advance

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
)

// Rotation hands the turn to the next active DJ with something queued.
type Rotation struct {
	cfg     Config
	related RelatedProvider
	logger  *slog.Logger
}

func NewRotation(cfg Config, related RelatedProvider, logger *slog.Logger) *Rotation {
	return &Rotation{cfg: cfg, related: related, logger: logger}
}

func (a *Rotation) Advance(ctx context.Context, room *domain.Room, now time.Time) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{
		Ended:               room.CurrentTrack.Clone(),
		PreviousParticipant: room.CurrentParticipantIndex,
		Participant:         domain.NoParticipant,
	}
	if res.Ended != nil {
		res.Events = append(res.Events, trackEnded(res.Ended))
	}

	idx := room.CurrentParticipantIndex
	for visited := 0; visited < len(room.Participants); visited++ {
		idx = NextActiveIndex(room.Participants, idx)
		if idx == domain.NoParticipant {
			break
		}

		p := &room.Participants[idx]
		if !p.HasNext() {
			if room.Settings.AutoAdvance {
				continue
			}

			room.CurrentParticipantIndex = idx
			room.Stop(now)
			res.Outcome = OutcomeStopped
			res.Participant = idx
			res.Events = append(res.Events, rotationAdvanced(res.PreviousParticipant, idx, p.UserID))
			return res, nil
		}

		entry := p.Queue[p.Cursor]
		p.Cursor++

		track := entry.ToTrack(domain.ModeRotation, p.UserID, now.UnixMilli())
		room.CurrentParticipantIndex = idx
		room.ReplaceTrack(track, now)
		room.AutoplayCount = 0

		res.Outcome = OutcomePlayed
		res.Started = track.Clone()
		res.Participant = idx
		res.Events = append(res.Events,
			rotationAdvanced(res.PreviousParticipant, idx, p.UserID),
			trackStarted(res.Started),
		)
		return res, nil
	}

	if room.Settings.AutoplayFallback {
		if track := relatedTrack(ctx, a.related, a.logger, room, res.Ended, a.cfg.AutoplayMax, now); track != nil {
			room.CurrentParticipantIndex = domain.NoParticipant
			room.ReplaceTrack(track, now)
			room.AutoplayCount++

			res.Outcome = OutcomeAutoplayed
			res.Started = track.Clone()
			res.Events = append(res.Events, trackStarted(res.Started))
			return res, nil
		}
	}

	room.CurrentParticipantIndex = domain.NoParticipant
	room.Stop(now)
	room.AutoplayCount = 0

	res.Outcome = OutcomeIdle
	res.Events = append(res.Events, events.New(events.RotationIdle, events.Payload{
		"active_participants": room.ActiveParticipantsCount(),
	}))
	return res, nil
}

func rotationAdvanced(from, to int, userID string) events.Event {
	return events.New(events.RotationAdvanced, events.Payload{
		"from":    from,
		"to":      to,
		"user_id": userID,
	})
}
