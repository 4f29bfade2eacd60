// Package cache is a read-through room cache for read-only paths. Writers
// never read from it; they invalidate it after every successful save.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sharetube/jukebox/internal/domain"
)

type LoadFunc func(ctx context.Context, roomID string) (*domain.Room, error)

type RoomCache struct {
	lru *expirable.LRU[string, *domain.Room]

	mu sync.Mutex
	// loads tracks in-flight misses per room. An Invalidate that lands
	// while a load runs marks it stale so its result is not stored.
	loads map[string]*pendingLoad
}

type pendingLoad struct {
	n     int
	stale bool
}

func NewRoomCache(size int, ttl time.Duration) *RoomCache {
	return &RoomCache{
		lru:   expirable.NewLRU[string, *domain.Room](size, nil, ttl),
		loads: make(map[string]*pendingLoad),
	}
}

// Get returns a copy of the cached room, loading it on a miss. Callers may
// mutate the result freely.
func (c *RoomCache) Get(ctx context.Context, roomID string, load LoadFunc) (*domain.Room, error) {
	if room, ok := c.lru.Get(roomID); ok {
		return room.Clone(), nil
	}

	pl := c.begin(roomID)
	room, err := load(ctx, roomID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if pl.n--; pl.n == 0 {
		delete(c.loads, roomID)
	}
	if err != nil {
		return nil, err
	}
	if !pl.stale {
		c.lru.Add(roomID, room.Clone())
	}

	return room, nil
}

func (c *RoomCache) begin(roomID string) *pendingLoad {
	c.mu.Lock()
	defer c.mu.Unlock()

	pl, ok := c.loads[roomID]
	if !ok {
		pl = &pendingLoad{}
		c.loads[roomID] = pl
	}
	pl.n++

	return pl
}

func (c *RoomCache) Invalidate(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pl, ok := c.loads[roomID]; ok {
		pl.stale = true
	}
	c.lru.Remove(roomID)
}

func (c *RoomCache) size() int {
	return c.lru.Len()
}
