package lock

import (
	"context"
	"sync"
	"time"
)

// InMemory is a process-local Locker.
type InMemory struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (l *InMemory) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.expires[key]; ok && now.Before(exp) {
		return false, nil
	}

	l.expires[key] = now.Add(ttl)
	return true, nil
}

func (l *InMemory) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.expires, key)
	return nil
}

// held reports whether key is currently locked.
func (l *InMemory) held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	exp, ok := l.expires[key]
	return ok && l.now().Before(exp)
}

// Prune drops expired keys and returns how many were removed.
func (l *InMemory) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, exp := range l.expires {
		if !now.Before(exp) {
			delete(l.expires, key)
			removed++
		}
	}

	return removed
}
