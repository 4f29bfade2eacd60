package room

import (
	"context"
	"slices"

	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/permission"
)

var (
	ErrEntryPlaying    = apperr.New(apperr.KindValidation, "entry is playing, skip it instead")
	ErrNothingToChange = apperr.New(apperr.KindValidation, "either entry id or track id is required")
)

func requireQueue(rm *domain.Room) error {
	if err := checkActive(rm); err != nil {
		return err
	}

	if rm.Mode.Family() != domain.FamilyQueue {
		return ErrWrongMode
	}

	return nil
}

// upcoming returns the shared queue entries after the one being played.
func upcoming(rm *domain.Room) []domain.QueueEntry {
	if rm.CurrentTrack == nil {
		return rm.Queue
	}

	i := domain.IndexOfEntry(rm.Queue, rm.CurrentTrack.QueueEntryID)
	return rm.Queue[i+1:]
}

func queueUpdated(rm *domain.Room) events.Event {
	return events.New(events.QueueUpdated, events.Payload{"queue": rm.Queue})
}

type AddToQueueParams struct {
	RoomID  string
	UserID  string
	TrackID string
}

type AddToQueueResponse struct {
	Entry   domain.QueueEntry `json:"entry"`
	Started bool              `json:"started"`
}

// AddToQueue appends a track to the shared queue. A user queuing a track
// ends any autoplay streak, and a stopped room starts playing right away.
func (s *service) AddToQueue(ctx context.Context, params *AddToQueueParams) (AddToQueueResponse, error) {
	rm, err := s.findRoom(ctx, params.RoomID)
	if err != nil {
		return AddToQueueResponse{}, err
	}
	if err := requireQueue(rm); err != nil {
		return AddToQueueResponse{}, err
	}
	if err := permission.Require(rm, params.UserID, permission.ActionQueueMutate); err != nil {
		return AddToQueueResponse{}, err
	}

	track, err := s.provider.GetTrack(ctx, params.TrackID)
	if err != nil {
		return AddToQueueResponse{}, err
	}
	entry := s.newEntry(track, params.UserID)

	rm, err = s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := requireQueue(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, params.UserID, permission.ActionQueueMutate); err != nil {
			return nil, err
		}

		if limitReached(rm.Settings.MaxSharedQueue, len(upcoming(rm))) {
			return nil, ErrQueueFull
		}

		rm.Queue = append(rm.Queue, entry)
		rm.AutoplayCount = 0

		return []events.Event{queueUpdated(rm)}, nil
	})
	if err != nil {
		return AddToQueueResponse{}, err
	}

	resp := AddToQueueResponse{Entry: entry}
	if isStopped(rm) {
		if resp.Started, err = s.kickStart(ctx, params.RoomID); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

type RemoveFromQueueParams struct {
	RoomID  string
	UserID  string
	EntryID string
}

func (s *service) RemoveFromQueue(ctx context.Context, params *RemoveFromQueueParams) error {
	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := requireQueue(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, params.UserID, permission.ActionQueueMutate); err != nil {
			return nil, err
		}

		i := domain.IndexOfEntry(rm.Queue, params.EntryID)
		if i < 0 {
			return nil, ErrEntryNotFound
		}
		if rm.CurrentTrack != nil && rm.CurrentTrack.QueueEntryID == params.EntryID {
			return nil, ErrEntryPlaying
		}

		rm.Queue = slices.Delete(slices.Clone(rm.Queue), i, i+1)

		return []events.Event{queueUpdated(rm)}, nil
	})

	return err
}

type ChangeTrackParams struct {
	RoomID string
	UserID string
	// EntryID jumps to a queued entry, TrackID plays a track outside the
	// queue. Exactly one is expected, EntryID wins when both are set.
	EntryID string
	TrackID string
}

type ChangeTrackResponse struct {
	Track *domain.Track `json:"track"`
}

// ChangeTrack replaces the current track on request of a user with playback
// control. The entry being played is consumed, the chosen entry moves to
// the head of the queue, votes are dropped and the autoplay streak ends.
func (s *service) ChangeTrack(ctx context.Context, params *ChangeTrackParams) (ChangeTrackResponse, error) {
	if params.EntryID == "" && params.TrackID == "" {
		return ChangeTrackResponse{}, ErrNothingToChange
	}

	rm, err := s.findRoom(ctx, params.RoomID)
	if err != nil {
		return ChangeTrackResponse{}, err
	}
	if err := requireQueue(rm); err != nil {
		return ChangeTrackResponse{}, err
	}
	if err := permission.Require(rm, params.UserID, permission.ActionPlaybackControl); err != nil {
		return ChangeTrackResponse{}, err
	}

	var external *domain.Track
	if params.EntryID == "" {
		t, err := s.provider.GetTrack(ctx, params.TrackID)
		if err != nil {
			return ChangeTrackResponse{}, err
		}

		e := s.newEntry(t, params.UserID)
		external = e.ToTrack(rm.Mode, params.UserID, 0)
	}

	var resp ChangeTrackResponse
	err = s.withRoomLock(ctx, params.RoomID, func(ctx context.Context) error {
		_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
			if err := requireQueue(rm); err != nil {
				return nil, err
			}

			if err := permission.Require(rm, params.UserID, permission.ActionPlaybackControl); err != nil {
				return nil, err
			}

			now := s.now()
			ended := rm.CurrentTrack.Clone()
			queue := slices.Clone(upcoming(rm))

			var track *domain.Track
			if params.EntryID != "" {
				i := domain.IndexOfEntry(queue, params.EntryID)
				if i < 0 {
					return nil, ErrEntryNotFound
				}

				entry := queue[i]
				queue = append([]domain.QueueEntry{entry}, slices.Delete(queue, i, i+1)...)
				track = entry.ToTrack(rm.Mode, entry.AddedBy, now.UnixMilli())
				track.QueueEntryID = entry.ID
			} else {
				track = external.Clone()
				track.StartedAt = now.UnixMilli()
				track.SessionStartedAt = now.UnixMilli()
			}

			rm.Queue = queue
			rm.ReplaceTrack(track, now)
			rm.AutoplayCount = 0
			resp.Track = track.Clone()

			var evs []events.Event
			if ended != nil {
				evs = append(evs, events.New(events.TrackEnded, events.Payload{"track": ended}))
			}

			return append(evs,
				queueUpdated(rm),
				events.New(events.TrackStarted, events.Payload{"track": resp.Track, "autoplay": false}),
			), nil
		})

		return err
	})
	if err != nil {
		return ChangeTrackResponse{}, err
	}

	return resp, nil
}
