package room

import (
	"context"
	"time"

	"github.com/sharetube/jukebox/internal/advance"
	"github.com/sharetube/jukebox/internal/apperr"
	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/metrics"
	"github.com/sharetube/jukebox/internal/permission"
	"github.com/sharetube/jukebox/internal/playback"
)

var ErrInvalidPosition = apperr.New(apperr.KindValidation, "position must not be negative")

type SkipParams struct {
	RoomID string
	UserID string
	// ExpectedTrackID guards against skipping a track that replaced the
	// one the user saw. Empty skips whatever is current.
	ExpectedTrackID string
}

type SkipResponse struct {
	Outcome advance.Outcome `json:"outcome"`
	Track   *domain.Track   `json:"track"`
}

func (s *service) Skip(ctx context.Context, params *SkipParams) (SkipResponse, error) {
	rm, err := s.findRoom(ctx, params.RoomID)
	if err != nil {
		return SkipResponse{}, err
	}
	if err := checkActive(rm); err != nil {
		return SkipResponse{}, err
	}
	if err := permission.Require(rm, params.UserID, permission.ActionPlaybackControl); err != nil {
		return SkipResponse{}, err
	}
	if rm.CurrentTrack == nil {
		return SkipResponse{}, ErrNothingPlaying
	}
	if params.ExpectedTrackID != "" && params.ExpectedTrackID != rm.CurrentTrack.ID {
		return SkipResponse{}, ErrTrackChanged
	}

	res, advanced, err := s.advance(ctx, params.RoomID, sameSession(rm.CurrentTrack.SessionKey()), true)
	if err != nil {
		return SkipResponse{}, err
	}
	if !advanced {
		return SkipResponse{}, ErrTrackChanged
	}

	return SkipResponse{Outcome: res.Outcome, Track: res.Started}, nil
}

type PlaybackParams struct {
	RoomID string
	UserID string
}

type SeekParams struct {
	RoomID   string
	UserID   string
	Position float64
}

type PlaybackResponse struct {
	TrackID   string  `json:"track_id"`
	IsPlaying bool    `json:"is_playing"`
	Position  float64 `json:"position"`
}

func playbackUpdated(rm *domain.Room, now time.Time) (events.Event, PlaybackResponse) {
	resp := PlaybackResponse{
		TrackID:   rm.CurrentTrack.ID,
		IsPlaying: rm.IsPlaying,
		Position:  playback.Position(rm.CurrentTrack, rm.IsPlaying, now),
	}

	return events.New(events.PlaybackUpdated, events.Payload{
		"track_id":   resp.TrackID,
		"is_playing": resp.IsPlaying,
		"position":   resp.Position,
		"started_at": rm.CurrentTrack.StartedAt,
	}), resp
}

// setPlayback applies a pause, resume or seek to the current track.
func (s *service) setPlayback(ctx context.Context, roomID, userID string, apply func(rm *domain.Room, now time.Time) bool) (PlaybackResponse, error) {
	var resp PlaybackResponse

	_, err := s.mutate(ctx, roomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := checkActive(rm); err != nil {
			return nil, err
		}

		if err := permission.Require(rm, userID, permission.ActionPlaybackControl); err != nil {
			return nil, err
		}

		if rm.CurrentTrack == nil {
			return nil, ErrNothingPlaying
		}

		now := s.now()
		changed := apply(rm, now)
		ev, r := playbackUpdated(rm, now)
		resp = r
		if !changed {
			return nil, errUnchanged
		}

		rm.LastSyncAt = now.UnixMilli()

		return []events.Event{ev}, nil
	})

	return resp, err
}

// Pause freezes the current track at its position.
func (s *service) Pause(ctx context.Context, params *PlaybackParams) (PlaybackResponse, error) {
	return s.setPlayback(ctx, params.RoomID, params.UserID, func(rm *domain.Room, now time.Time) bool {
		if !rm.IsPlaying {
			return false
		}

		playback.Freeze(rm.CurrentTrack, true, now)
		rm.IsPlaying = false

		return true
	})
}

// Resume re-anchors the frozen position at now and restarts the clock.
func (s *service) Resume(ctx context.Context, params *PlaybackParams) (PlaybackResponse, error) {
	return s.setPlayback(ctx, params.RoomID, params.UserID, func(rm *domain.Room, now time.Time) bool {
		if rm.IsPlaying {
			return false
		}

		position := playback.Position(rm.CurrentTrack, false, now)
		playback.Anchor(rm.CurrentTrack, position, now)
		rm.IsPlaying = true

		return true
	})
}

// Seek moves the current track to position. The playback session and the
// votes cast against it survive a seek.
func (s *service) Seek(ctx context.Context, params *SeekParams) (PlaybackResponse, error) {
	if params.Position < 0 {
		return PlaybackResponse{}, ErrInvalidPosition
	}

	return s.setPlayback(ctx, params.RoomID, params.UserID, func(rm *domain.Room, now time.Time) bool {
		playback.Anchor(rm.CurrentTrack, params.Position, now)
		return true
	})
}

type PositionResponse struct {
	TrackID    string  `json:"track_id"`
	Duration   float64 `json:"duration"`
	Position   float64 `json:"position"`
	IsPlaying  bool    `json:"is_playing"`
	ServerTime int64   `json:"server_time"`
}

func (s *service) GetPosition(ctx context.Context, roomID string) (PositionResponse, error) {
	rm, err := s.cachedRoom(ctx, roomID)
	if err != nil {
		return PositionResponse{}, err
	}

	now := s.now()
	resp := PositionResponse{ServerTime: now.UnixMilli()}
	if rm.CurrentTrack == nil {
		return resp, nil
	}

	resp.TrackID = rm.CurrentTrack.ID
	resp.Duration = rm.CurrentTrack.Duration
	resp.IsPlaying = rm.IsPlaying
	resp.Position = playback.Position(rm.CurrentTrack, rm.IsPlaying, now)

	return resp, nil
}

// PositionSample is a client report kept by the caller between reports.
type PositionSample struct {
	TrackID  string
	Position float64
	At       time.Time
}

type ReportPositionParams struct {
	RoomID   string
	TrackID  string
	Position float64
	HalfRTT  time.Duration
	Previous *PositionSample
}

type ReportPositionResponse struct {
	TrackID    string               `json:"track_id"`
	Expected   float64              `json:"expected"`
	DriftMs    int64                `json:"drift_ms"`
	Action     playback.DriftAction `json:"action"`
	Jitter     bool                 `json:"jitter"`
	WrongTrack bool                 `json:"wrong_track"`

	// Sample is what the caller should pass as Previous next time.
	Sample PositionSample `json:"-"`
}

// ReportPosition compares a client's position with the authoritative one and
// tells the client how to correct. The server never moves clients itself.
func (s *service) ReportPosition(ctx context.Context, params *ReportPositionParams) (ReportPositionResponse, error) {
	rm, err := s.cachedRoom(ctx, params.RoomID)
	if err != nil {
		return ReportPositionResponse{}, err
	}
	if rm.CurrentTrack == nil {
		return ReportPositionResponse{}, ErrNothingPlaying
	}

	now := s.now()
	th := s.cfg.Drift
	resp := ReportPositionResponse{
		TrackID:  rm.CurrentTrack.ID,
		Expected: playback.ExpectedPosition(rm.CurrentTrack, rm.IsPlaying, now, params.HalfRTT),
		Sample:   PositionSample{TrackID: params.TrackID, Position: params.Position, At: now},
	}

	if params.TrackID != rm.CurrentTrack.ID {
		resp.WrongTrack = true
		resp.Action = playback.DriftHard
		metrics.DriftReports.WithLabelValues(string(resp.Action)).Inc()
		return resp, nil
	}

	drift := playback.Drift(params.Position, resp.Expected)
	resp.DriftMs = drift.Milliseconds()
	resp.Action = th.Classify(drift)

	if prev := params.Previous; prev != nil && prev.TrackID == params.TrackID && rm.IsPlaying {
		resp.Jitter = th.IsJitter(params.Position, prev.Position, now.Sub(prev.At))
	}

	metrics.DriftReports.WithLabelValues(string(resp.Action)).Inc()

	return resp, nil
}
