package domain

import "slices"

// QueueEntry is a track waiting in the shared queue or in a DJ's personal
// queue.
type QueueEntry struct {
	ID           string  `json:"id" bson:"id"`
	TrackID      string  `json:"track_id" bson:"track_id"`
	Title        string  `json:"title" bson:"title"`
	Artist       string  `json:"artist" bson:"artist"`
	Thumbnail    string  `json:"thumbnail" bson:"thumbnail"`
	Duration     float64 `json:"duration" bson:"duration"`
	StreamingURL string  `json:"streaming_url" bson:"streaming_url"`
	AddedBy      string  `json:"added_by" bson:"added_by"`
	AddedAt      int64   `json:"added_at" bson:"added_at"`
}

// ToTrack snapshots the entry into a freshly started track.
func (e QueueEntry) ToTrack(mode Mode, ownerID string, nowMs int64) *Track {
	return &Track{
		ID:               e.TrackID,
		Title:            e.Title,
		Artist:           e.Artist,
		Thumbnail:        e.Thumbnail,
		Duration:         e.Duration,
		StreamingURL:     e.StreamingURL,
		StartedAt:        nowMs,
		SessionStartedAt: nowMs,
		OwnerID:          ownerID,
		Mode:             mode,
	}
}

func IndexOfEntry(queue []QueueEntry, entryID string) int {
	if entryID == "" {
		return -1
	}

	return slices.IndexFunc(queue, func(e QueueEntry) bool {
		return e.ID == entryID
	})
}
