package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/service/room"
	"github.com/sharetube/jukebox/pkg/rest"
)

type createRoomRequest struct {
	Mode     string           `json:"mode" validate:"required,oneof=normal coop rotation"`
	Settings *domain.Settings `json:"settings"`
}

func (c *controller) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !c.readRequest(w, r, &req, false) {
		return
	}

	resp, err := c.roomService.CreateRoom(r.Context(), &room.CreateRoomParams{
		OwnerID:  c.getUserIDFromCtx(r.Context()),
		Mode:     domain.Mode(req.Mode),
		Settings: req.Settings,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp.Room})
}

func (c *controller) getRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := c.roomService.GetRoom(r.Context(), urlRoomID(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rm})
}

func (c *controller) closeRoom(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.CloseRoom(r.Context(), &room.CloseRoomParams{
		RoomID:   urlRoomID(r),
		SenderID: c.getUserIDFromCtx(r.Context()),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *controller) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.Settings
	if !c.readRequest(w, r, &req, false) {
		return
	}

	rm, err := c.roomService.UpdateSettings(r.Context(), &room.UpdateSettingsParams{
		RoomID:   urlRoomID(r),
		SenderID: c.getUserIDFromCtx(r.Context()),
		Settings: req,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rm.Settings})
}

func (c *controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.JoinRoom(r.Context(), &room.JoinRoomParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp.Room})
}

func (c *controller) leaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.LeaveRoom(r.Context(), &room.LeaveRoomParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setHostRequest struct {
	IsHost bool `json:"is_host"`
}

func (c *controller) setHost(w http.ResponseWriter, r *http.Request) {
	var req setHostRequest
	if !c.readRequest(w, r, &req, false) {
		return
	}

	rm, err := c.roomService.SetHost(r.Context(), &room.SetHostParams{
		RoomID:   urlRoomID(r),
		SenderID: c.getUserIDFromCtx(r.Context()),
		UserID:   chi.URLParam(r, "user-id"),
		IsHost:   req.IsHost,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": rest.Envelope{"host_ids": rm.HostIDs}})
}

type addTrackRequest struct {
	TrackID string `json:"track_id" validate:"required,max=128"`
}

func (c *controller) addToQueue(w http.ResponseWriter, r *http.Request) {
	var req addTrackRequest
	if !c.readRequest(w, r, &req, false) {
		return
	}

	resp, err := c.roomService.AddToQueue(r.Context(), &room.AddToQueueParams{
		RoomID:  urlRoomID(r),
		UserID:  c.getUserIDFromCtx(r.Context()),
		TrackID: req.TrackID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp})
}

func (c *controller) removeFromQueue(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.RemoveFromQueue(r.Context(), &room.RemoveFromQueueParams{
		RoomID:  urlRoomID(r),
		UserID:  c.getUserIDFromCtx(r.Context()),
		EntryID: chi.URLParam(r, "entry-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type joinRotationRequest struct {
	DisplayName string `json:"display_name" validate:"max=64"`
}

func (c *controller) joinRotation(w http.ResponseWriter, r *http.Request) {
	var req joinRotationRequest
	if !c.readRequest(w, r, &req, true) {
		return
	}

	resp, err := c.roomService.JoinRotation(r.Context(), &room.JoinRotationParams{
		RoomID:      urlRoomID(r),
		UserID:      c.getUserIDFromCtx(r.Context()),
		DisplayName: req.DisplayName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c *controller) leaveRotation(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.LeaveRotation(r.Context(), &room.LeaveRotationParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *controller) addToRotationQueue(w http.ResponseWriter, r *http.Request) {
	var req addTrackRequest
	if !c.readRequest(w, r, &req, false) {
		return
	}

	resp, err := c.roomService.AddToRotationQueue(r.Context(), &room.AddToRotationQueueParams{
		RoomID:  urlRoomID(r),
		UserID:  c.getUserIDFromCtx(r.Context()),
		TrackID: req.TrackID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": resp})
}

func (c *controller) removeFromRotationQueue(w http.ResponseWriter, r *http.Request) {
	if err := c.roomService.RemoveFromRotationQueue(r.Context(), &room.RemoveFromRotationQueueParams{
		RoomID:  urlRoomID(r),
		UserID:  c.getUserIDFromCtx(r.Context()),
		EntryID: chi.URLParam(r, "entry-id"),
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type changeTrackRequest struct {
	EntryID string `json:"entry_id" validate:"required_without=TrackID"`
	TrackID string `json:"track_id" validate:"max=128"`
}

func (c *controller) changeTrack(w http.ResponseWriter, r *http.Request) {
	var req changeTrackRequest
	if !c.readRequest(w, r, &req, false) {
		return
	}

	resp, err := c.roomService.ChangeTrack(r.Context(), &room.ChangeTrackParams{
		RoomID:  urlRoomID(r),
		UserID:  c.getUserIDFromCtx(r.Context()),
		EntryID: req.EntryID,
		TrackID: req.TrackID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

type skipRequest struct {
	ExpectedTrackID string `json:"expected_track_id"`
}

func (c *controller) skip(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if !c.readRequest(w, r, &req, true) {
		return
	}

	resp, err := c.roomService.Skip(r.Context(), &room.SkipParams{
		RoomID:          urlRoomID(r),
		UserID:          c.getUserIDFromCtx(r.Context()),
		ExpectedTrackID: req.ExpectedTrackID,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c *controller) pause(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.Pause(r.Context(), &room.PlaybackParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c *controller) resume(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.Resume(r.Context(), &room.PlaybackParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

type seekRequest struct {
	Position float64 `json:"position" validate:"gte=0"`
}

func (c *controller) seek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !c.readRequest(w, r, &req, false) {
		return
	}

	resp, err := c.roomService.Seek(r.Context(), &room.SeekParams{
		RoomID:   urlRoomID(r),
		UserID:   c.getUserIDFromCtx(r.Context()),
		Position: req.Position,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c *controller) getPosition(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.GetPosition(r.Context(), urlRoomID(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c *controller) getVotes(w http.ResponseWriter, r *http.Request) {
	tally, err := c.roomService.Votes(r.Context(), urlRoomID(r))
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": tally})
}

func (c *controller) vote(w http.ResponseWriter, r *http.Request) {
	resp, err := c.roomService.Vote(r.Context(), &room.VoteParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": resp})
}

func (c *controller) unvote(w http.ResponseWriter, r *http.Request) {
	tally, err := c.roomService.Unvote(r.Context(), &room.VoteParams{
		RoomID: urlRoomID(r),
		UserID: c.getUserIDFromCtx(r.Context()),
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": tally})
}
