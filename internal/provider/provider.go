// Package provider resolves track metadata from an external catalogue.
package provider

import (
	"context"

	"github.com/sharetube/jukebox/internal/apperr"
)

var (
	ErrTrackNotFound = apperr.New(apperr.KindNotFound, "track not found")
	ErrUnavailable   = apperr.New(apperr.KindTransient, "metadata provider unavailable")
)

type Track struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Artist       string  `json:"artist"`
	Thumbnail    string  `json:"thumbnail"`
	Duration     float64 `json:"duration"`
	StreamingURL string  `json:"streaming_url"`
}

type Provider interface {
	GetTrack(ctx context.Context, id string) (Track, error)
	// GetRelatedTrack returns nil when the catalogue has nothing related.
	GetRelatedTrack(ctx context.Context, seedID string) (*Track, error)
}

func IsTransient(err error) bool {
	return apperr.KindOf(err) == apperr.KindTransient
}
