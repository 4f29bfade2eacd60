// Package lock provides the per-room mutual exclusion used around track
// advancement. Both implementations share one contract: TryAcquire never
// blocks, and a held key expires on its own once its TTL passes even if
// Release is never called.
package lock

import (
	"context"
	"log/slog"
	"time"
)

type Locker interface {
	// TryAcquire reports false without error when the key is already held.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RoomKey is the lock key guarding advancement of one room.
func RoomKey(roomID string) string {
	return "lock:room:" + roomID + ":advance"
}

// ReleaseAfter releases key once d has passed and then calls onRelease, if
// set. The returned timer may be stopped to keep the lock until its TTL.
func ReleaseAfter(locker Locker, key string, d time.Duration, onRelease func()) *time.Timer {
	return time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := locker.Release(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
		}

		if onRelease != nil {
			onRelease()
		}
	})
}
