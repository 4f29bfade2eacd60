package room

import (
	"context"
	"errors"

	"github.com/sharetube/jukebox/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrVersionConflict = errors.New("room version conflict")
)

// Store persists whole room documents. Save succeeds only when the persisted
// version still equals room.Version and bumps room.Version on success.
type Store interface {
	FindActive(ctx context.Context, mode domain.Mode) ([]*domain.Room, error)
	FindOne(ctx context.Context, roomID string) (*domain.Room, error)
	Save(ctx context.Context, room *domain.Room) error
}
