package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sharetube/jukebox/internal/advance"
	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/internal/cache"
	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/lock"
	"github.com/sharetube/jukebox/internal/metrics"
	"github.com/sharetube/jukebox/internal/playback"
	"github.com/sharetube/jukebox/internal/provider"
	"github.com/sharetube/jukebox/internal/repository/room"
)

var (
	ErrRoomNotFound        = apperr.New(apperr.KindNotFound, "room not found")
	ErrRoomClosed          = apperr.New(apperr.KindNotFound, "room is closed")
	ErrNotMember           = apperr.New(apperr.KindForbidden, "user is not a room member")
	ErrInvalidMode         = apperr.New(apperr.KindValidation, "invalid room mode")
	ErrWrongMode           = apperr.New(apperr.KindValidation, "operation is not available in this room mode")
	ErrInvalidRatio        = apperr.New(apperr.KindValidation, "vote skip ratio must be within [0, 1]")
	ErrNothingPlaying      = apperr.New(apperr.KindValidation, "no track is playing")
	ErrVoteSkipDisabled    = apperr.New(apperr.KindValidation, "vote skip is disabled")
	ErrDirectSkipAvailable = apperr.New(apperr.KindValidation, "user can skip directly")
	ErrAlreadyVoted        = apperr.New(apperr.KindConflict, "user already voted for this track")
	ErrQueueFull           = apperr.New(apperr.KindValidation, "queue limit reached")
	ErrEntryNotFound       = apperr.New(apperr.KindNotFound, "queue entry not found")
	ErrNotParticipant      = apperr.New(apperr.KindNotFound, "user is not in the rotation")
	ErrOwnerCannotLeave    = apperr.New(apperr.KindValidation, "owner cannot leave the room, close it instead")
	ErrTrackChanged        = apperr.New(apperr.KindConflict, "track changed before the request was applied")
	ErrRoomBusy            = apperr.New(apperr.KindConflict, "room is being advanced, try again")
	ErrConcurrentUpdate    = apperr.New(apperr.KindConflict, "room was modified concurrently")
)

// errUnchanged lets a mutation finish without saving.
var errUnchanged = errors.New("room unchanged")

// errContended is retried until the lock wait runs out.
var errContended = errors.New("room lock is held")

const advanceSource = "service"

type iRoomStore interface {
	FindOne(ctx context.Context, roomID string) (*domain.Room, error)
	Save(ctx context.Context, room *domain.Room) error
}

type iRoomCache interface {
	Get(ctx context.Context, roomID string, load cache.LoadFunc) (*domain.Room, error)
	Invalidate(roomID string)
}

type iTrackProvider interface {
	GetTrack(ctx context.Context, id string) (provider.Track, error)
}

type Config struct {
	VoteSkipRatio float64
	// CoopVoteRatio always applies to coop rooms.
	CoopVoteRatio   float64
	ConflictRetries int
	LockTTL         time.Duration
	// LockWait bounds how long a manual advance waits for an engine
	// cool-down to pass.
	LockWait time.Duration
	Drift    playback.Thresholds
}

func DefaultConfig() Config {
	return Config{
		VoteSkipRatio:   0.5,
		CoopVoteRatio:   2.0 / 3.0,
		ConflictRetries: 3,
		LockTTL:         30 * time.Second,
		LockWait:        3 * time.Second,
		Drift:           playback.DefaultThresholds(),
	}
}

type Deps struct {
	Store     iRoomStore
	Cache     iRoomCache
	Locker    lock.Locker
	Selector  advance.Selector
	Provider  iTrackProvider
	Publisher events.Publisher
	Logger    *slog.Logger
}

type service struct {
	store     iRoomStore
	cache     iRoomCache
	locker    lock.Locker
	selector  advance.Selector
	provider  iTrackProvider
	publisher events.Publisher
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
	newID     func() string
}

func NewService(deps Deps, cfg Config) *service {
	return &service{
		store:     deps.Store,
		cache:     deps.Cache,
		locker:    deps.Locker,
		selector:  deps.Selector,
		provider:  deps.Provider,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		cfg:       cfg,
		now:       time.Now,
		newID:     newID,
	}
}

func (s *service) findRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	rm, err := s.store.FindOne(ctx, roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}

		return nil, fmt.Errorf("failed to find room: %w", err)
	}

	return rm, nil
}

func (s *service) cachedRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.cache.Get(ctx, roomID, s.findRoom)
}

func checkActive(rm *domain.Room) error {
	if !rm.IsActive {
		return ErrRoomClosed
	}

	return nil
}

type mutation func(rm *domain.Room) ([]events.Event, error)

// mutate re-fetches the room, applies fn and saves the result, starting over
// when another writer saved in between. Events are published only after a
// successful save.
func (s *service) mutate(ctx context.Context, roomID string, fn mutation) (*domain.Room, error) {
	for attempt := 0; ; attempt++ {
		rm, err := s.findRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}

		evs, err := fn(rm)
		if err != nil {
			if errors.Is(err, errUnchanged) {
				return rm, nil
			}

			return nil, err
		}

		if err := s.store.Save(ctx, rm); err != nil {
			if errors.Is(err, room.ErrVersionConflict) {
				if attempt < s.cfg.ConflictRetries {
					s.logger.DebugContext(ctx, "retrying room mutation", "room_id", roomID, "attempt", attempt+1)
					continue
				}

				return nil, apperr.Wrap(apperr.KindConflict, ErrConcurrentUpdate.Msg, err)
			}

			return nil, fmt.Errorf("failed to save room: %w", err)
		}

		s.cache.Invalidate(roomID)
		events.PublishAll(ctx, s.publisher, roomID, evs)

		return rm, nil
	}
}

// withRoomLock runs fn while holding the room lock. A held lock is waited
// for up to LockWait, which covers an engine cool-down.
func (s *service) withRoomLock(ctx context.Context, roomID string, fn func(ctx context.Context) error) error {
	key := lock.RoomKey(roomID)

	var b backoff.BackOff = &backoff.StopBackOff{}
	if s.cfg.LockWait > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 50 * time.Millisecond
		eb.MaxInterval = 500 * time.Millisecond
		eb.MaxElapsedTime = s.cfg.LockWait
		eb.Reset()
		b = eb
	}

	err := backoff.Retry(func() error {
		ok, err := s.locker.TryAcquire(ctx, key, s.cfg.LockTTL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to acquire room lock: %w", err))
		}
		if !ok {
			metrics.LockContention.WithLabelValues(advanceSource).Inc()
			return errContended
		}

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if errors.Is(err, errContended) {
			return ErrRoomBusy
		}

		return err
	}

	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key); err != nil {
			s.logger.WarnContext(ctx, "failed to release room lock", "room_id", roomID, "error", err)
		}
	}()

	return fn(ctx)
}

// precondition re-validates the reloaded room before a manual advance.
type precondition func(rm *domain.Room) bool

// advance runs the room's advance algorithm under the room lock. It reports
// false when the precondition no longer holds or a concurrent writer won.
// A manual advance is a person changing the track, which restarts the
// autoplay budget.
func (s *service) advance(ctx context.Context, roomID string, pre precondition, manual bool) (advance.Result, bool, error) {
	var (
		res      advance.Result
		advanced bool
	)

	err := s.withRoomLock(ctx, roomID, func(ctx context.Context) error {
		rm, err := s.findRoom(ctx, roomID)
		if err != nil {
			return err
		}

		if !rm.IsActive || !pre(rm) {
			metrics.Advances.WithLabelValues(advanceSource, "abandoned").Inc()
			return nil
		}

		if manual {
			rm.AutoplayCount = 0
		}
		res, err = s.selector.For(rm.Mode).Advance(ctx, rm, s.now())
		if err != nil {
			return fmt.Errorf("failed to advance room: %w", err)
		}

		if err := s.store.Save(ctx, rm); err != nil {
			if errors.Is(err, room.ErrVersionConflict) {
				metrics.Advances.WithLabelValues(advanceSource, "abandoned").Inc()
				return nil
			}

			return fmt.Errorf("failed to save room: %w", err)
		}

		s.cache.Invalidate(roomID)
		events.PublishAll(ctx, s.publisher, roomID, res.Events)
		metrics.Advances.WithLabelValues(advanceSource, string(res.Outcome)).Inc()
		advanced = true

		return nil
	})

	return res, advanced, err
}

func sameSession(key domain.SessionKey) precondition {
	return func(rm *domain.Room) bool {
		return rm.CurrentTrack != nil && rm.CurrentTrack.SessionKey() == key
	}
}

func isStopped(rm *domain.Room) bool {
	return rm.CurrentTrack == nil
}
