// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"sync/atomic"
)

// WaitMutex is a reentrant mutual exclusion lock, usable as a WaitHandle.
// Unlike Mutex, it may be held while suspended, and unlike Monitor, it has
// no condition queue.
//
// A WaitMutex still owned by a thread that stops is abandoned, and released
// as that thread exits, passing ownership to the next waiter.
//
// Instances must be created using NewWaitMutex.
type WaitMutex struct {
	lock  *Lock // binary, 1 while unowned
	owner atomic.Pointer[Thread]
	count atomic.Int32 // written only by the owner

	// unregisters the abandon handler, accessed only by the owner
	cleanup func() bool
}

// NewWaitMutex creates a new WaitMutex, owned by owner, or unowned if owner
// is nil.
func NewWaitMutex(owner *Thread) *WaitMutex {
	m := &WaitMutex{lock: NewLock(1)}
	if owner != nil {
		m.lock.value = 0
		m.acquired(owner)
	}
	return m
}

// Close checks that the mutex may be discarded, failing with ErrSyncLock if
// it is owned, or any thread is blocked on it.
func (m *WaitMutex) Close() error {
	if m.owner.Load() != nil || m.lock.Waiters() != 0 {
		return ErrSyncLock
	}
	return nil
}

// Owner returns the owning thread, or nil.
func (m *WaitMutex) Owner() *Thread { return m.owner.Load() }

// Count returns the recursion count of the current owner, 0 if unowned.
func (m *WaitMutex) Count() int { return int(m.count.Load()) }

// Wait acquires the mutex, see WaitOne. A thread that already owns the mutex
// acquires it again immediately.
func (m *WaitMutex) Wait(t *Thread, ms Timeout) error { return WaitOne(t, m, ms) }

// Release decrements the recursion count, passing ownership to the oldest
// waiter once it drops to zero. It fails with ErrSyncLock, leaving the mutex
// untouched, unless t is the owner.
func (m *WaitMutex) Release(t *Thread) error {
	if t == nil || m.owner.Load() != t {
		if t != nil {
			if b := t.rt.diag.warning(`wait_mutex_unowned`, m); b != nil {
				b.Int64(`thread`, t.id).
					Log(`wait mutex released by non-owner`)
			}
		}
		return ErrSyncLock
	}
	if m.count.Add(-1) != 0 {
		return nil
	}
	if m.cleanup != nil {
		m.cleanup()
		m.cleanup = nil
	}
	m.unlock()
	return nil
}

func (m *WaitMutex) unlock() {
	m.owner.Store(nil)
	_ = m.lock.Signal()
}

// abandon releases the mutex, if still owned by the exiting thread t.
func (m *WaitMutex) abandon(t *Thread) {
	if m.owner.Load() != t {
		return
	}
	t.logger.Debug().
		Int(`count`, int(m.count.Load())).
		Log(`wait mutex abandoned`)
	m.count.Store(0)
	m.cleanup = nil
	m.unlock()
}

func (m *WaitMutex) register(t *Thread, g *multiWait) (*lockWaiter, bool) {
	if m.owner.Load() == t {
		return nil, g.claim()
	}
	return m.lock.register(t, g)
}

func (m *WaitMutex) unregister(w *lockWaiter) bool { return m.lock.unregister(w) }

func (m *WaitMutex) acquired(t *Thread) {
	if m.owner.Load() == t {
		m.count.Add(1)
		return
	}
	m.owner.Store(t)
	m.count.Store(1)
	m.cleanup = t.RegisterCleanup(m.abandon)
}

func (m *WaitMutex) release(t *Thread) { _ = m.Release(t) }

func (m *WaitMutex) signal(t *Thread) error { return m.Release(t) }
