package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sharetube/jukebox/internal/domain"
	"github.com/sharetube/jukebox/internal/repository/room"
)

var allModes = []domain.Mode{domain.ModeNormal, domain.ModeCoop, domain.ModeRotation}

type repo struct {
	rc *redis.Client
	// expireDuration bounds how long closed rooms stay readable.
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) getActiveKey(mode domain.Mode) string {
	return "rooms:active:" + string(mode)
}

func (r repo) FindOne(ctx context.Context, roomID string) (*domain.Room, error) {
	funcName := "room.redis.FindOne"
	slog.DebugContext(ctx, funcName, "room_id", roomID)

	data, err := r.rc.Get(ctx, r.getRoomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, room.ErrRoomNotFound
		}

		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var rm domain.Room
	if err := json.Unmarshal(data, &rm); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}

	return &rm, nil
}

func (r repo) FindActive(ctx context.Context, mode domain.Mode) ([]*domain.Room, error) {
	funcName := "room.redis.FindActive"
	activeKey := r.getActiveKey(mode)

	ids, err := r.rc.SMembers(ctx, activeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active rooms: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.getRoomKey(id))
	}

	values, err := r.rc.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rooms: %w", err)
	}

	rooms := make([]*domain.Room, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			// expired document left behind in the active set
			r.rc.SRem(ctx, activeKey, ids[i])
			continue
		}

		var rm domain.Room
		if err := json.Unmarshal([]byte(s), &rm); err != nil {
			slog.WarnContext(ctx, funcName, "room_id", ids[i], "error", err)
			continue
		}
		if !rm.IsActive || rm.Mode != mode {
			continue
		}

		rooms = append(rooms, &rm)
	}

	slog.DebugContext(ctx, funcName, "mode", mode, "result", len(rooms))
	return rooms, nil
}

func (r repo) Save(ctx context.Context, rm *domain.Room) error {
	funcName := "room.redis.Save"
	roomKey := r.getRoomKey(rm.ID)
	expected := rm.Version

	next := *rm
	next.Version = expected + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode room: %w", err)
	}

	var expiration time.Duration
	if !rm.IsActive {
		expiration = r.expireDuration
	}

	txf := func(tx *redis.Tx) error {
		current, err := r.storedVersion(ctx, tx, roomKey)
		if err != nil {
			return err
		}
		if current != expected {
			return room.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, roomKey, payload, expiration)
			for _, mode := range allModes {
				pipe.SRem(ctx, r.getActiveKey(mode), rm.ID)
			}
			if rm.IsActive {
				pipe.SAdd(ctx, r.getActiveKey(rm.Mode), rm.ID)
			}

			return nil
		})

		return err
	}

	if err := r.rc.Watch(ctx, txf, roomKey); err != nil {
		if errors.Is(err, redis.TxFailedErr) || errors.Is(err, room.ErrVersionConflict) {
			slog.DebugContext(ctx, funcName, "room_id", rm.ID, "version", expected, "error", room.ErrVersionConflict)
			return room.ErrVersionConflict
		}

		return fmt.Errorf("failed to save room: %w", err)
	}

	rm.Version = next.Version
	slog.DebugContext(ctx, funcName, "room_id", rm.ID, "version", rm.Version)
	return nil
}

func (r repo) storedVersion(ctx context.Context, tx *redis.Tx, roomKey string) (int64, error) {
	data, err := tx.Get(ctx, roomKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var v struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, fmt.Errorf("failed to decode room version: %w", err)
	}

	return v.Version, nil
}
