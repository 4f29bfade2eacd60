package room

import (
	"context"
	"fmt"
	"slices"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/permission"
)

func validateSettings(settings domain.Settings) error {
	if settings.VoteSkipRatio < 0 || settings.VoteSkipRatio > 1 {
		return ErrInvalidRatio
	}

	return nil
}

type CreateRoomParams struct {
	OwnerID  string
	Mode     domain.Mode
	Settings *domain.Settings
}

type CreateRoomResponse struct {
	Room *domain.Room `json:"room"`
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if !params.Mode.Valid() {
		return CreateRoomResponse{}, ErrInvalidMode
	}

	settings := domain.DefaultSettings()
	if params.Settings != nil {
		settings = *params.Settings
	}
	if err := validateSettings(settings); err != nil {
		return CreateRoomResponse{}, err
	}

	rm := domain.NewRoom(s.newID(), params.OwnerID, params.Mode, settings, s.now())
	if err := s.store.Save(ctx, rm); err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to save room: %w", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", rm.ID, "mode", rm.Mode)

	return CreateRoomResponse{Room: rm}, nil
}

func (s *service) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return s.cachedRoom(ctx, roomID)
}

type CloseRoomParams struct {
	RoomID   string
	SenderID string
}

func (s *service) CloseRoom(ctx context.Context, params *CloseRoomParams) error {
	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if !rm.IsActive {
			return nil, errUnchanged
		}

		if err := permission.Require(rm, params.SenderID, permission.ActionSettings); err != nil {
			return nil, err
		}

		rm.IsActive = false
		rm.Stop(s.now())

		return []events.Event{events.New(events.RoomClosed, events.Payload{"room_id": rm.ID})}, nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "room closed", "room_id", params.RoomID)

	return nil
}

type JoinRoomParams struct {
	RoomID string
	UserID string
}

type JoinRoomResponse struct {
	Room *domain.Room `json:"room"`
}

func (s *service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	rm, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := checkActive(rm); err != nil {
			return nil, err
		}

		if rm.IsMember(params.UserID) {
			return nil, errUnchanged
		}

		rm.Members = append(rm.Members, params.UserID)

		return []events.Event{membersUpdated(rm)}, nil
	})
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{Room: rm}, nil
}

type LeaveRoomParams struct {
	RoomID string
	UserID string
}

// LeaveRoom drops the user's membership and pending votes. A DJ leaving the
// room is soft-removed from the rotation, and the turn passes on when it
// was theirs.
func (s *service) LeaveRoom(ctx context.Context, params *LeaveRoomParams) error {
	var left leaveResult

	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if rm.IsOwner(params.UserID) {
			return nil, ErrOwnerCannotLeave
		}

		if !rm.IsMember(params.UserID) {
			return nil, ErrNotMember
		}

		rm.Members = slices.DeleteFunc(rm.Members, func(id string) bool { return id == params.UserID })
		rm.HostIDs = slices.DeleteFunc(rm.HostIDs, func(id string) bool { return id == params.UserID })
		rm.VoteSkips = slices.DeleteFunc(rm.VoteSkips, func(v domain.VoteSkip) bool { return v.UserID == params.UserID })

		evs := []events.Event{membersUpdated(rm)}
		left = deactivateParticipant(rm, params.UserID)
		if left.deactivated {
			evs = append(evs, participantInactive(params.UserID, "left"))
		}

		return evs, nil
	})
	if err != nil {
		return err
	}

	return s.passTurnIfCurrent(ctx, params.RoomID, left)
}

type SetHostParams struct {
	RoomID   string
	SenderID string
	UserID   string
	IsHost   bool
}

func (s *service) SetHost(ctx context.Context, params *SetHostParams) (*domain.Room, error) {
	return s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := checkActive(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, params.SenderID, permission.ActionSettings); err != nil {
			return nil, err
		}

		if !rm.IsMember(params.UserID) {
			return nil, ErrNotMember
		}

		if rm.IsHost(params.UserID) == params.IsHost {
			return nil, errUnchanged
		}

		if params.IsHost {
			rm.HostIDs = append(rm.HostIDs, params.UserID)
		} else {
			rm.HostIDs = slices.DeleteFunc(rm.HostIDs, func(id string) bool { return id == params.UserID })
		}

		return []events.Event{membersUpdated(rm)}, nil
	})
}

type UpdateSettingsParams struct {
	RoomID   string
	SenderID string
	Settings domain.Settings
}

func (s *service) UpdateSettings(ctx context.Context, params *UpdateSettingsParams) (*domain.Room, error) {
	if err := validateSettings(params.Settings); err != nil {
		return nil, err
	}

	return s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := checkActive(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, params.SenderID, permission.ActionSettings); err != nil {
			return nil, err
		}

		if rm.Settings == params.Settings {
			return nil, errUnchanged
		}

		rm.Settings = params.Settings

		return []events.Event{events.New(events.RoomUpdated, events.Payload{"settings": rm.Settings})}, nil
	})
}

func membersUpdated(rm *domain.Room) events.Event {
	return events.New(events.RoomUpdated, events.Payload{
		"members":  rm.Members,
		"host_ids": rm.HostIDs,
	})
}
