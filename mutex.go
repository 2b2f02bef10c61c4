package vmthread

import (
	"sync"
)

// Mutex is a suspend-safe mutual exclusion lock. A thread holding any Mutex
// is never suspended: a suspend requested meanwhile takes effect once the
// thread releases the last Mutex it holds.
//
// It is intended for short critical sections over runtime-internal state,
// where suspending the holder would block every other thread. The zero value
// is an unlocked mutex. A Mutex is not reentrant.
type Mutex struct {
	mu sync.Mutex
}

// Lock acquires the mutex on behalf of t, which must be the calling thread.
func (m *Mutex) Lock(t *Thread) {
	t.locksHeld.Add(1)
	m.mu.Lock()
}

// TryLock attempts to acquire the mutex without blocking.
func (m *Mutex) TryLock(t *Thread) bool {
	t.locksHeld.Add(1)
	if m.mu.TryLock() {
		return true
	}
	t.locksHeld.Add(-1)
	return false
}

// Unlock releases the mutex. If t holds no other Mutex, Unlock is a safe
// point.
func (m *Mutex) Unlock(t *Thread) {
	m.mu.Unlock()
	switch n := t.locksHeld.Add(-1); {
	case n == 0:
		t.lockWaitSafePoint()
	case n < 0:
		panic(`vmthread: unlock of unlocked mutex`)
	}
}
