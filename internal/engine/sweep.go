package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/lock"
	"github.com/sharetube/jukebox/internal/metrics"
	"github.com/sharetube/jukebox/internal/repository/room"
	"github.com/sharetube/jukebox/pkg/ctxlogger"
)

// SweepIdle deactivates DJs with nothing queued that have been idle longer
// than the idle timeout. When the current DJ is deactivated the turn passes
// on immediately. Rooms whose lock is held are left for the next sweep.
func (e *Engine) SweepIdle(ctx context.Context) {
	now := e.now()

	for _, mode := range e.family.Modes() {
		rooms, err := e.store.FindActive(ctx, mode)
		if err != nil {
			e.fail(ctx, "", "sweep_load", err)
			continue
		}

		for _, rm := range rooms {
			if len(idleParticipants(rm, now, e.cfg.IdleTimeout)) == 0 {
				continue
			}

			if err := e.sweepRoom(ctx, rm.ID, now); err != nil {
				e.fail(ctx, rm.ID, "sweep", err)
			}
		}
	}
}

func (e *Engine) sweepRoom(ctx context.Context, roomID string, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	key := lock.RoomKey(roomID)
	ok, err := e.locker.TryAcquire(ctx, key, e.cfg.LockTTL)
	if err != nil {
		return err
	}
	if !ok {
		metrics.LockContention.WithLabelValues(e.name).Inc()
		return nil
	}
	defer e.scheduleRelease(key, roomID)

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomID))

	rm, err := e.store.FindOne(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil
		}

		return fmt.Errorf("failed to reload room: %w", err)
	}
	if !rm.IsActive {
		return nil
	}

	idle := idleParticipants(rm, now, e.cfg.IdleTimeout)
	if len(idle) == 0 {
		return nil
	}

	var evs []events.Event
	wasCurrent := false
	for _, i := range idle {
		rm.Participants[i].Active = false
		if i == rm.CurrentParticipantIndex {
			wasCurrent = true
		}

		evs = append(evs, events.New(events.ParticipantInactive, events.Payload{
			"user_id": rm.Participants[i].UserID,
			"reason":  "idle",
		}))
	}

	if wasCurrent {
		res, err := e.selector.For(rm.Mode).Advance(ctx, rm, now)
		if err != nil {
			return fmt.Errorf("failed to advance room: %w", err)
		}
		evs = append(evs, res.Events...)
		metrics.Advances.WithLabelValues(e.name, string(res.Outcome)).Inc()
	}

	if err := e.store.Save(ctx, rm); err != nil {
		if errors.Is(err, room.ErrVersionConflict) {
			return nil
		}

		return fmt.Errorf("failed to save room: %w", err)
	}

	e.cache.Invalidate(roomID)
	events.PublishAll(ctx, e.publisher, roomID, evs)
	e.logger.InfoContext(ctx, "idle participants deactivated", "count", len(idle), "was_current", wasCurrent)

	return nil
}

// idleParticipants returns the indexes of active DJs with an empty queue
// whose last activity is older than timeout. The current DJ is spared while
// their own track is still playing.
func idleParticipants(rm *domain.Room, now time.Time, timeout time.Duration) []int {
	cutoff := now.Add(-timeout).UnixMilli()

	var idle []int
	for i, p := range rm.Participants {
		if !p.Active || p.HasNext() || p.LastActiveAt >= cutoff {
			continue
		}
		if i == rm.CurrentParticipantIndex && rm.IsPlayingTrack() && rm.CurrentTrack.OwnerID == p.UserID {
			continue
		}

		idle = append(idle, i)
	}

	return idle
}
