// Package engine runs the periodic track-end detection for one family of
// room modes. Each tick scans the active rooms, emits the prepare and
// ending-soon notifications once per playback session and hands rooms whose
// track reached its hard end to a locked, asynchronous advance.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sharetube/jukebox/internal/advance"
	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/lock"
	"github.com/sharetube/jukebox/internal/metrics"
	"github.com/sharetube/jukebox/internal/playback"
)

const (
	nameQueue    = "queue"
	nameRotation = "rotation"
)

type iRoomStore interface {
	FindActive(ctx context.Context, mode domain.Mode) ([]*domain.Room, error)
	FindOne(ctx context.Context, roomID string) (*domain.Room, error)
	Save(ctx context.Context, room *domain.Room) error
}

type iRoomCache interface {
	Invalidate(roomID string)
}

type Config struct {
	Interval      time.Duration
	PrepareOffset time.Duration
	SoftOffset    time.Duration
	HardTolerance time.Duration
	// LockCooldown keeps a room locked after an advance so the next tick
	// cannot re-trigger it. It must exceed Interval.
	LockCooldown time.Duration
	// LockTTL bounds how long a lock survives a crashed holder.
	LockTTL           time.Duration
	AdvanceTimeout    time.Duration
	IdleSweepInterval time.Duration
	IdleTimeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:          250 * time.Millisecond,
		PrepareOffset:     30 * time.Second,
		SoftOffset:        10 * time.Second,
		HardTolerance:     250 * time.Millisecond,
		LockCooldown:      2 * time.Second,
		LockTTL:           30 * time.Second,
		AdvanceTimeout:    10 * time.Second,
		IdleSweepInterval: 30 * time.Second,
		IdleTimeout:       5 * time.Minute,
	}
}

var ErrInvalidConfig = errors.New("invalid engine config")

func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	case c.LockCooldown <= c.Interval:
		return fmt.Errorf("%w: lock cool-down %s must exceed tick interval %s", ErrInvalidConfig, c.LockCooldown, c.Interval)
	case c.LockTTL < c.LockCooldown:
		return fmt.Errorf("%w: lock ttl must not be shorter than the cool-down", ErrInvalidConfig)
	case c.HardTolerance < 0 || c.SoftOffset < c.HardTolerance || c.PrepareOffset < c.SoftOffset:
		return fmt.Errorf("%w: offsets must satisfy hard <= soft <= prepare", ErrInvalidConfig)
	case c.AdvanceTimeout <= 0:
		return fmt.Errorf("%w: advance timeout must be positive", ErrInvalidConfig)
	}

	return nil
}

type Deps struct {
	Store     iRoomStore
	Locker    lock.Locker
	Selector  advance.Selector
	Publisher events.Publisher
	Cache     iRoomCache
	Logger    *slog.Logger
}

type Engine struct {
	name   string
	family domain.Family
	sweeps bool
	// next describes what plays after the current track, for prepare-next.
	next func(room *domain.Room) events.Payload

	store     iRoomStore
	locker    lock.Locker
	selector  advance.Selector
	publisher events.Publisher
	cache     iRoomCache
	logger    *slog.Logger
	tracer    trace.Tracer

	cfg    Config
	now    func() time.Time
	phases *phaseTracker
	wg     sync.WaitGroup
}

func newEngine(name string, family domain.Family, deps Deps, cfg Config) *Engine {
	return &Engine{
		name:      name,
		family:    family,
		store:     deps.Store,
		locker:    deps.Locker,
		selector:  deps.Selector,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		logger:    deps.Logger.With("engine", name),
		tracer:    otel.Tracer("github.com/sharetube/jukebox/internal/engine"),
		cfg:       cfg,
		now:       time.Now,
		phases:    newPhaseTracker(),
	}
}

// NewQueueEngine watches normal and coop rooms.
func NewQueueEngine(deps Deps, cfg Config) *Engine {
	e := newEngine(nameQueue, domain.FamilyQueue, deps, cfg)
	e.next = nextQueueEntry
	return e
}

// NewRotationEngine watches rotation rooms and also runs the idle DJ sweep.
func NewRotationEngine(deps Deps, cfg Config) *Engine {
	e := newEngine(nameRotation, domain.FamilyRotation, deps, cfg)
	e.next = nextRotationTurn
	e.sweeps = true
	return e
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) Name() string {
	return e.name
}

// Run ticks until ctx is cancelled, then waits for in-flight advances.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	var sweep <-chan time.Time
	if e.sweeps && e.cfg.IdleSweepInterval > 0 {
		sweepTicker := time.NewTicker(e.cfg.IdleSweepInterval)
		defer sweepTicker.Stop()
		sweep = sweepTicker.C
	}

	e.logger.InfoContext(ctx, "engine started", "interval", e.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			e.logger.InfoContext(ctx, "engine stopped")
			return nil
		case <-ticker.C:
			e.tick(ctx)
		case <-sweep:
			e.SweepIdle(ctx)
		}
	}
}

// Wait blocks until every dispatched advance has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) tick(ctx context.Context) {
	started := time.Now()
	metrics.EngineTicks.WithLabelValues(e.name).Inc()
	defer func() {
		metrics.EngineTickDuration.WithLabelValues(e.name).Observe(time.Since(started).Seconds())
	}()

	now := e.now()
	seen := make(map[string]struct{})
	complete := true
	for _, mode := range e.family.Modes() {
		rooms, err := e.store.FindActive(ctx, mode)
		if err != nil {
			e.fail(ctx, "", "load", err)
			complete = false
			continue
		}

		for _, room := range rooms {
			seen[room.ID] = struct{}{}
			e.checkRoom(ctx, room, now)
		}
	}

	if complete {
		e.phases.prune(seen)
	}
}

func (e *Engine) checkRoom(ctx context.Context, room *domain.Room, now time.Time) {
	defer e.recoverRoom(ctx, room.ID, "check")

	if !room.IsPlayingTrack() {
		return
	}

	t := room.CurrentTrack
	if t.StartedAt == 0 || t.Duration == 0 {
		return
	}

	elapsed := playback.Position(t, true, now)
	if elapsed >= t.Duration-e.cfg.HardTolerance.Seconds() {
		e.dispatchAdvance(ctx, room.ID, t.ID, t.StartedAt)
		return
	}

	session := t.SessionKey().String()
	var notes []events.Event
	if elapsed >= t.Duration-e.cfg.PrepareOffset.Seconds() && e.phases.mark(room.ID, session, phasePrepare) {
		payload := e.next(room)
		payload["track_id"] = t.ID
		if t.OwnerID != "" {
			payload[events.TargetUserKey] = t.OwnerID
		}
		notes = append(notes, events.New(events.PrepareNext, payload))
	}

	if elapsed >= t.Duration-e.cfg.SoftOffset.Seconds() && e.phases.mark(room.ID, session, phaseSoft) {
		notes = append(notes, events.New(events.TrackEndingSoon, events.Payload{
			"track_id":  t.ID,
			"remaining": t.Duration - elapsed,
		}))
	}

	if len(notes) > 0 {
		e.notify(ctx, room.ID, notes)
	}
}

// notify publishes off the tick so a slow subscriber cannot delay the scan
// of the remaining rooms.
func (e *Engine) notify(ctx context.Context, roomID string, evs []events.Event) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.recoverRoom(ctx, roomID, "notify")

		events.PublishAll(ctx, e.publisher, roomID, evs)
	}()
}

func (e *Engine) fail(ctx context.Context, roomID, phase string, err error) {
	metrics.EngineErrors.WithLabelValues(e.name, phase).Inc()
	e.logger.ErrorContext(ctx, "room processing failed", "room_id", roomID, "phase", phase, "error", err)
}

func (e *Engine) recoverRoom(ctx context.Context, roomID, phase string) {
	if r := recover(); r != nil {
		e.fail(ctx, roomID, phase, fmt.Errorf("panic: %v", r))
	}
}
