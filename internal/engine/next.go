package engine

import (
	"github.com/sharetube/jukebox/internal/advance"
	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/events"
)

func nextQueueEntry(room *domain.Room) events.Payload {
	payload := events.Payload{"autoplay": room.Settings.Autoplay}

	i := domain.IndexOfEntry(room.Queue, room.CurrentTrack.QueueEntryID)
	if i+1 < len(room.Queue) {
		payload["next_entry"] = room.Queue[i+1]
	} else {
		payload["next_entry"] = nil
	}

	return payload
}

// nextRotationTurn names the DJ whose track would play next.
func nextRotationTurn(room *domain.Room) events.Payload {
	payload := events.Payload{"next_user_id": nil, "next_entry": nil}

	idx := room.CurrentParticipantIndex
	for visited := 0; visited < len(room.Participants); visited++ {
		idx = advance.NextActiveIndex(room.Participants, idx)
		if idx == domain.NoParticipant {
			break
		}

		p := room.Participants[idx]
		if p.HasNext() {
			payload["next_user_id"] = p.UserID
			payload["next_entry"] = p.Queue[p.Cursor]
			break
		}
		if !room.Settings.AutoAdvance {
			break
		}
	}

	return payload
}
