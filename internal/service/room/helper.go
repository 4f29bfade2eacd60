package room

import (
	"github.com/google/uuid"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/provider"
)

func newID() string {
	return uuid.NewString()
}

func (s *service) newEntry(t provider.Track, addedBy string) domain.QueueEntry {
	return domain.QueueEntry{
		ID:           s.newID(),
		TrackID:      t.ID,
		Title:        t.Title,
		Artist:       t.Artist,
		Thumbnail:    t.Thumbnail,
		Duration:     t.Duration,
		StreamingURL: t.StreamingURL,
		AddedBy:      addedBy,
		AddedAt:      s.now().UnixMilli(),
	}
}

func limitReached(limit, size int) bool {
	return limit > 0 && size >= limit
}
