package engine

import (
	"sync"

	"golang.org/x/exp/maps"
)

type phase int

const (
	phasePrepare phase = iota
	phaseSoft
)

type phaseFlags struct {
	session  string
	prepared bool
	warned   bool
}

// phaseTracker remembers which notifications were already sent for the
// current playback session of each room.
type phaseTracker struct {
	mu    sync.Mutex
	flags map[string]*phaseFlags
}

func newPhaseTracker() *phaseTracker {
	return &phaseTracker{flags: make(map[string]*phaseFlags)}
}

// mark records ph for the session and reports whether it was not yet set.
func (p *phaseTracker) mark(roomID, session string, ph phase) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, ok := p.flags[roomID]
	if !ok || f.session != session {
		f = &phaseFlags{session: session}
		p.flags[roomID] = f
	}

	switch ph {
	case phasePrepare:
		if f.prepared {
			return false
		}
		f.prepared = true
	case phaseSoft:
		if f.warned {
			return false
		}
		f.warned = true
	}

	return true
}

func (p *phaseTracker) clear(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.flags, roomID)
}

// prune forgets rooms that are no longer active.
func (p *phaseTracker) prune(active map[string]struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	maps.DeleteFunc(p.flags, func(roomID string, _ *phaseFlags) bool {
		_, ok := active[roomID]
		return !ok
	})
}

func (p *phaseTracker) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.flags)
}
