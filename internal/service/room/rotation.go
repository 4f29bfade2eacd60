package room

import (
	"context"
	"errors"
	"slices"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/permission"
)

type leaveResult struct {
	deactivated bool
	wasCurrent  bool
	index       int
	session     domain.SessionKey
}

// deactivateParticipant soft-removes the user from the rotation. The entry
// and its queue stay in place so that a later JoinRotation resumes it.
func deactivateParticipant(rm *domain.Room, userID string) leaveResult {
	i := rm.ParticipantIndex(userID)
	if i < 0 || !rm.Participants[i].Active {
		return leaveResult{index: i}
	}

	rm.Participants[i].Active = false

	return leaveResult{
		deactivated: true,
		wasCurrent:  i == rm.CurrentParticipantIndex,
		index:       i,
		session:     rm.CurrentTrack.SessionKey(),
	}
}

// passTurnIfCurrent advances the rotation when the departed DJ held the
// turn. Nothing happens if the room moved on in the meantime.
func (s *service) passTurnIfCurrent(ctx context.Context, roomID string, left leaveResult) error {
	if !left.wasCurrent {
		return nil
	}

	_, _, err := s.advance(ctx, roomID, func(rm *domain.Room) bool {
		return rm.CurrentParticipantIndex == left.index &&
			left.index < len(rm.Participants) &&
			!rm.Participants[left.index].Active &&
			rm.CurrentTrack.SessionKey() == left.session
	}, false)
	if errors.Is(err, ErrRoomBusy) {
		return nil
	}

	return err
}

// kickStart starts playback in a room that has nothing loaded.
func (s *service) kickStart(ctx context.Context, roomID string) (bool, error) {
	_, started, err := s.advance(ctx, roomID, isStopped, false)
	if errors.Is(err, ErrRoomBusy) {
		return false, nil
	}

	return started, err
}

func participantInactive(userID, reason string) events.Event {
	return events.New(events.ParticipantInactive, events.Payload{
		"user_id": userID,
		"reason":  reason,
	})
}

func rotationUpdated(rm *domain.Room) events.Event {
	return events.New(events.RotationUpdated, events.Payload{
		"participants":              rm.Participants,
		"current_participant_index": rm.CurrentParticipantIndex,
	})
}

func requireRotation(rm *domain.Room) error {
	if err := checkActive(rm); err != nil {
		return err
	}

	if rm.Mode != domain.ModeRotation {
		return ErrWrongMode
	}

	return nil
}

type JoinRotationParams struct {
	RoomID      string
	UserID      string
	DisplayName string
}

type JoinRotationResponse struct {
	Participant domain.Participant `json:"participant"`
	Started     bool               `json:"started"`
}

// JoinRotation adds the user to the end of the rotation, or re-activates
// their earlier entry with its remaining queue.
func (s *service) JoinRotation(ctx context.Context, params *JoinRotationParams) (JoinRotationResponse, error) {
	var resp JoinRotationResponse

	rm, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := requireRotation(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, params.UserID, permission.ActionRotationJoin); err != nil {
			return nil, err
		}

		nowMs := s.now().UnixMilli()
		i := rm.ParticipantIndex(params.UserID)
		switch {
		case i >= 0 && rm.Participants[i].Active:
			resp.Participant = rm.Participants[i]
			return nil, errUnchanged
		case i >= 0:
			rm.Participants[i].Active = true
			rm.Participants[i].LastActiveAt = nowMs
			if params.DisplayName != "" {
				rm.Participants[i].DisplayName = params.DisplayName
			}
		default:
			rm.Participants = append(rm.Participants, domain.Participant{
				UserID:       params.UserID,
				DisplayName:  params.DisplayName,
				Active:       true,
				JoinedAt:     nowMs,
				LastActiveAt: nowMs,
			})
			i = len(rm.Participants) - 1
		}
		resp.Participant = rm.Participants[i]

		return []events.Event{rotationUpdated(rm)}, nil
	})
	if err != nil {
		return JoinRotationResponse{}, err
	}

	if isStopped(rm) && resp.Participant.HasNext() {
		if resp.Started, err = s.kickStart(ctx, params.RoomID); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

type LeaveRotationParams struct {
	RoomID string
	UserID string
}

func (s *service) LeaveRotation(ctx context.Context, params *LeaveRotationParams) error {
	var left leaveResult

	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := requireRotation(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, params.UserID, permission.ActionRotationLeave); err != nil {
			return nil, err
		}

		left = deactivateParticipant(rm, params.UserID)
		if !left.deactivated {
			return nil, ErrNotParticipant
		}

		return []events.Event{participantInactive(params.UserID, "left"), rotationUpdated(rm)}, nil
	})
	if err != nil {
		return err
	}

	return s.passTurnIfCurrent(ctx, params.RoomID, left)
}

type AddToRotationQueueParams struct {
	RoomID  string
	UserID  string
	TrackID string
}

type AddToRotationQueueResponse struct {
	Entry   domain.QueueEntry `json:"entry"`
	Started bool              `json:"started"`
}

// AddToRotationQueue resolves the track and appends it to the DJ's personal
// queue. An idle room starts playing right away.
func (s *service) AddToRotationQueue(ctx context.Context, params *AddToRotationQueueParams) (AddToRotationQueueResponse, error) {
	rm, err := s.findRoom(ctx, params.RoomID)
	if err != nil {
		return AddToRotationQueueResponse{}, err
	}
	if err := requireRotation(rm); err != nil {
		return AddToRotationQueueResponse{}, err
	}
	if !rm.IsActiveParticipant(params.UserID) {
		return AddToRotationQueueResponse{}, ErrNotParticipant
	}

	track, err := s.provider.GetTrack(ctx, params.TrackID)
	if err != nil {
		return AddToRotationQueueResponse{}, err
	}
	entry := s.newEntry(track, params.UserID)

	rm, err = s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := requireRotation(rm); err != nil {
			return nil, err
		}

		i := rm.ParticipantIndex(params.UserID)
		if i < 0 || !rm.Participants[i].Active {
			return nil, ErrNotParticipant
		}

		p := &rm.Participants[i]
		if limitReached(rm.Settings.MaxParticipantQueue, len(p.Upcoming())) {
			return nil, ErrQueueFull
		}

		p.Queue = append(p.Queue, entry)
		p.LastActiveAt = s.now().UnixMilli()

		return []events.Event{rotationUpdated(rm)}, nil
	})
	if err != nil {
		return AddToRotationQueueResponse{}, err
	}

	resp := AddToRotationQueueResponse{Entry: entry}
	if isStopped(rm) {
		if resp.Started, err = s.kickStart(ctx, params.RoomID); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

type RemoveFromRotationQueueParams struct {
	RoomID  string
	UserID  string
	EntryID string
}

// RemoveFromRotationQueue drops one of the DJ's upcoming entries. Entries
// that already played are history and cannot be removed.
func (s *service) RemoveFromRotationQueue(ctx context.Context, params *RemoveFromRotationQueueParams) error {
	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := requireRotation(rm); err != nil {
			return nil, err
		}

		i := rm.ParticipantIndex(params.UserID)
		if i < 0 {
			return nil, ErrNotParticipant
		}

		p := &rm.Participants[i]
		j := domain.IndexOfEntry(p.Queue, params.EntryID)
		if j < p.Cursor {
			return nil, ErrEntryNotFound
		}

		p.Queue = slices.Delete(slices.Clone(p.Queue), j, j+1)
		p.LastActiveAt = s.now().UnixMilli()

		return []events.Event{rotationUpdated(rm)}, nil
	})

	return err
}
