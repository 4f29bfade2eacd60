package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while this instance still owns it, so a
// lock that expired and was taken by another instance is left alone.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a Locker shared by every instance connected to the same redis.
type Redis struct {
	rc         *redis.Client
	instanceID string
}

func NewRedis(rc *redis.Client, instanceID string) *Redis {
	return &Redis{rc: rc, instanceID: instanceID}
}

func (l *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rc.SetNX(ctx, key, l.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return ok, nil
}

func (l *Redis) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.rc, []string{key}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	return nil
}
