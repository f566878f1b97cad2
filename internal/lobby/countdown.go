// internal/lobby/countdown.go
package lobby

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// stopper is the part of *time.Timer the countdowns need.
type stopper interface {
	Stop() bool
}

// scheduler runs fn after d. time.AfterFunc in production.
type scheduler func(d time.Duration, fn func()) stopper

func realScheduler(d time.Duration, fn func()) stopper {
	return time.AfterFunc(d, fn)
}

// countdowns keeps at most one pending auto-start re-check per session.
// Scheduling again for the same session stops the pending one.
type countdowns struct {
	mu      sync.Mutex
	pending map[uuid.UUID]stopper
	after   scheduler
}

func newCountdowns(after scheduler) *countdowns {
	return &countdowns{
		pending: make(map[uuid.UUID]stopper),
		after:   after,
	}
}

// schedule replaces any pending countdown for sessionID with one that runs fn after d.
// It reports whether a pending countdown was replaced.
func (cd *countdowns) schedule(sessionID uuid.UUID, d time.Duration, fn func()) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	prev, replaced := cd.pending[sessionID]
	if replaced {
		prev.Stop()
	}

	var t stopper
	t = cd.after(d, func() {
		cd.mu.Lock()
		current := cd.pending[sessionID] == t
		if current {
			delete(cd.pending, sessionID)
		}
		cd.mu.Unlock()
		// a replaced timer that fired before Stop is dropped here
		if current {
			fn()
		}
	})
	cd.pending[sessionID] = t
	return replaced
}

// isPending reports whether sessionID has a countdown waiting to fire.
func (cd *countdowns) isPending(sessionID uuid.UUID) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	_, ok := cd.pending[sessionID]
	return ok
}

// stop cancels the pending countdown for sessionID, if any.
func (cd *countdowns) stop(sessionID uuid.UUID) {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	if t, ok := cd.pending[sessionID]; ok {
		t.Stop()
		delete(cd.pending, sessionID)
	}
}

// stopAll cancels every pending countdown.
func (cd *countdowns) stopAll() {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	for id, t := range cd.pending {
		t.Stop()
		delete(cd.pending, id)
	}
}
