package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/lock"
	"github.com/sharetube/jukebox/internal/metrics"
	"github.com/sharetube/jukebox/internal/repository/room"
	"github.com/sharetube/jukebox/pkg/ctxlogger"
)

const outcomeAbandoned = "abandoned"

// dispatchAdvance takes the room lock and advances the room on its own
// goroutine. Contention means another advance owns the room and is not an
// error.
func (e *Engine) dispatchAdvance(ctx context.Context, roomID, trackID string, startedAt int64) {
	key := lock.RoomKey(roomID)
	ok, err := e.locker.TryAcquire(ctx, key, e.cfg.LockTTL)
	if err != nil {
		e.fail(ctx, roomID, "lock", err)
		return
	}
	if !ok {
		metrics.LockContention.WithLabelValues(e.name).Inc()
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.scheduleRelease(key, roomID)
		defer e.recoverRoom(ctx, roomID, "advance")

		if err := e.advanceRoom(ctx, roomID, trackID, startedAt); err != nil {
			e.fail(ctx, roomID, "advance", err)
		}
	}()
}

func (e *Engine) scheduleRelease(key, roomID string) {
	lock.ReleaseAfter(e.locker, key, e.cfg.LockCooldown, func() {
		e.phases.clear(roomID)
	})
}

func (e *Engine) advanceRoom(ctx context.Context, roomID, trackID string, startedAt int64) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AdvanceTimeout)
	defer cancel()

	ctx = ctxlogger.AppendCtx(ctx, slog.String("room_id", roomID))
	ctx, span := e.tracer.Start(ctx, "engine.advance", trace.WithAttributes(
		attribute.String("engine", e.name),
		attribute.String("room_id", roomID),
		attribute.String("track_id", trackID),
	))
	defer span.End()

	rm, err := e.store.FindOne(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil
		}

		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to reload room: %w", err)
	}

	if !rm.IsPlayingTrack() || rm.CurrentTrack.ID != trackID || rm.CurrentTrack.StartedAt != startedAt {
		metrics.Advances.WithLabelValues(e.name, outcomeAbandoned).Inc()
		e.logger.DebugContext(ctx, "advance precondition no longer holds")
		return nil
	}

	res, err := e.selector.For(rm.Mode).Advance(ctx, rm, e.now())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to advance room: %w", err)
	}

	if err := e.store.Save(ctx, rm); err != nil {
		if errors.Is(err, room.ErrVersionConflict) {
			metrics.Advances.WithLabelValues(e.name, outcomeAbandoned).Inc()
			e.logger.DebugContext(ctx, "advance lost a concurrent update")
			return nil
		}

		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save room: %w", err)
	}

	e.cache.Invalidate(roomID)
	events.PublishAll(ctx, e.publisher, roomID, res.Events)

	span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
	metrics.Advances.WithLabelValues(e.name, string(res.Outcome)).Inc()
	e.logger.InfoContext(ctx, "room advanced", "outcome", res.Outcome, "ended", trackID)

	return nil
}
