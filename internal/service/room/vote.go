package room

import (
	"context"
	"math"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/metrics"
	"github.com/sharetube/jukebox/internal/permission"
)

type VoteTally struct {
	Votes     int  `json:"votes"`
	Threshold int  `json:"threshold"`
	Met       bool `json:"met"`
	NeedMore  int  `json:"need_more"`
}

// threshold is ceil(members × ratio) and never below one vote.
func threshold(members int, ratio float64) int {
	// the epsilon keeps 3 × 2/3 at 2
	n := int(math.Ceil(float64(members)*ratio - 1e-9))
	return max(n, 1)
}

func (s *service) ratio(rm *domain.Room) float64 {
	switch {
	case rm.Mode == domain.ModeCoop:
		return s.cfg.CoopVoteRatio
	case rm.Settings.VoteSkipRatio > 0:
		return rm.Settings.VoteSkipRatio
	default:
		return s.cfg.VoteSkipRatio
	}
}

func (s *service) tally(rm *domain.Room) VoteTally {
	t := VoteTally{
		Votes:     len(rm.SessionVotes()),
		Threshold: threshold(len(rm.Members), s.ratio(rm)),
	}
	t.Met = t.Votes >= t.Threshold
	t.NeedMore = max(t.Threshold-t.Votes, 0)

	return t
}

func voteUpdated(rm *domain.Room, t VoteTally) events.Event {
	return events.New(events.VoteUpdated, events.Payload{
		"track_id":  rm.CurrentTrack.ID,
		"votes":     t.Votes,
		"threshold": t.Threshold,
		"need_more": t.NeedMore,
	})
}

type VoteParams struct {
	RoomID string
	UserID string
}

type VoteResponse struct {
	VoteTally
	Advanced bool `json:"advanced"`
}

// Vote records the user's vote against the current playback session and
// advances the room once the threshold is met. When the advance finds the
// room busy the vote stays recorded and ErrRoomBusy is returned; voting
// again retries the pass.
func (s *service) Vote(ctx context.Context, params *VoteParams) (VoteResponse, error) {
	var (
		resp    VoteResponse
		session domain.SessionKey
	)

	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := checkActive(rm); err != nil {
			return nil, err
		}

		switch {
		case !rm.Settings.VoteSkipEnabled:
			return nil, ErrVoteSkipDisabled
		case !rm.IsPlayingTrack():
			return nil, ErrNothingPlaying
		case permission.Can(rm, params.UserID, permission.ActionPlaybackControl):
			return nil, ErrDirectSkipAvailable
		case !rm.IsMember(params.UserID):
			return nil, ErrNotMember
		}

		if err := permission.Require(rm, params.UserID, permission.ActionVoteSkip); err != nil {
			return nil, err
		}

		session = rm.CurrentTrack.SessionKey()
		key := session.String()
		if rm.HasVoted(params.UserID, key) {
			if t := s.tally(rm); t.Met {
				resp.VoteTally = t
				return nil, errUnchanged
			}

			return nil, ErrAlreadyVoted
		}

		rm.VoteSkips = append(rm.VoteSkips, domain.VoteSkip{
			UserID:     params.UserID,
			SessionKey: key,
			CreatedAt:  s.now().UnixMilli(),
		})
		resp.VoteTally = s.tally(rm)

		return []events.Event{voteUpdated(rm, resp.VoteTally)}, nil
	})
	if err != nil {
		metrics.Votes.WithLabelValues("rejected").Inc()
		return VoteResponse{}, err
	}

	metrics.Votes.WithLabelValues("accepted").Inc()
	if !resp.Met {
		return resp, nil
	}

	_, resp.Advanced, err = s.advance(ctx, params.RoomID, func(rm *domain.Room) bool {
		return rm.IsPlayingTrack() && rm.CurrentTrack.SessionKey() == session && s.tally(rm).Met
	}, true)
	if err != nil {
		return resp, err
	}
	if resp.Advanced {
		metrics.Votes.WithLabelValues("passed").Inc()
	}

	return resp, nil
}

// Unvote withdraws the user's vote against the current session, if any.
func (s *service) Unvote(ctx context.Context, params *VoteParams) (VoteTally, error) {
	var t VoteTally

	_, err := s.mutate(ctx, params.RoomID, func(rm *domain.Room) ([]events.Event, error) {
		if err := checkActive(rm); err != nil {
			return nil, err
		}

		if rm.CurrentTrack == nil {
			return nil, ErrNothingPlaying
		}

		removed := rm.RemoveVote(params.UserID, rm.CurrentTrack.SessionKey().String())
		t = s.tally(rm)
		if !removed {
			return nil, errUnchanged
		}

		return []events.Event{voteUpdated(rm, t)}, nil
	})

	return t, err
}

// Votes reports the tally of the current session from the read cache.
func (s *service) Votes(ctx context.Context, roomID string) (VoteTally, error) {
	rm, err := s.cachedRoom(ctx, roomID)
	if err != nil {
		return VoteTally{}, err
	}

	return s.tally(rm), nil
}
