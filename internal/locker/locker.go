// Package locker provides the scoped reader-writer lock guarding database
// scans and mutations.
//
// A scan holds the shared section for its entire lifetime, from first pull
// to exhaustion or early abandonment. Acquisition hands back a release
// closure so the holder can guarantee release with a defer on every exit
// path.
package locker

import (
	"sync"
)

// Locker is a reader-writer lock handing out scoped release closures.
// Many readers may hold the shared section; writers are exclusive.
type Locker struct {
	mu sync.RWMutex
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{}
}

// AcquireShared enters the shared section and returns its release closure.
// The closure is idempotent: releasing twice is a no-op, not a fault.
func (l *Locker) AcquireShared() (release func()) {
	l.mu.RLock()
	var once sync.Once
	return func() {
		once.Do(l.mu.RUnlock)
	}
}

// AcquireExclusive enters the exclusive section and returns its release
// closure. The closure is idempotent.
func (l *Locker) AcquireExclusive() (release func()) {
	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(l.mu.Unlock)
	}
}

// TryAcquireExclusive attempts to enter the exclusive section without
// blocking. Used by tests to prove readers released the shared section.
func (l *Locker) TryAcquireExclusive() (release func(), ok bool) {
	if !l.mu.TryLock() {
		return nil, false
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, true
}
