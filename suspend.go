// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

// Suspend suspends the thread, blocking until it has parked, or the request
// could not be completed. It is equivalent to SuspendRequest(false).
func (t *Thread) Suspend() SuspendResult { return t.SuspendRequest(false) }

// SuspendRequest requests that the thread suspend itself, at its next safe
// point. Safe points are explicit calls to SafePoint, the release of the last
// Mutex held by the thread, entry to and exit from wait, sleep and join, and
// wakeups while blocked on a Lock.
//
// A thread in WaitSleepJoin is not suspended until it leaves that state, in
// which case SuspendPending is returned immediately. If requestOnly is true,
// only the request is recorded.
//
// Otherwise, the caller blocks until the thread parks (SuspendOK), stops
// (SuspendFailed), or the request is withdrawn, e.g. by Resume, or because
// the thread entered a wait state while holding a Mutex (SuspendPending).
// A thread suspending itself parks immediately, unless it holds a Mutex.
func (t *Thread) SuspendRequest(requestOnly bool) SuspendResult {
	self := t.isSelf()

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.state&AbortRequested != 0:
		return SuspendAborted
	case t.state&Suspended != 0:
		return SuspendOK
	case t.state&(Unstarted|Stopped) != 0:
		return SuspendFailed
	}

	t.state |= SuspendRequested

	if requestOnly || t.state&WaitSleepJoin != 0 {
		return SuspendPending
	}

	if self {
		if t.locksHeld.Load() != 0 {
			return SuspendPending
		}
		t.parkLocked()
		return SuspendOK
	}

	gen := t.parkGen
	t.poke()

	if t.locksHeld.Load() != 0 {
		if b := t.rt.diag.warning(`suspend_deferred`, t); b != nil {
			b.Int64(`thread`, t.id).
				Int(`locks_held`, int(t.locksHeld.Load())).
				Log(`suspend deferred until thread releases its locks`)
		}
	}

	for t.parkGen == gen {
		switch {
		case t.state&Stopped != 0:
			return SuspendFailed
		case t.state&AbortRequested != 0:
			return SuspendAborted
		case t.state&SuspendRequested == 0, t.state&WaitSleepJoin != 0:
			return SuspendPending
		}
		t.cond.Wait()
	}

	return SuspendOK
}

// Resume resumes a suspended thread, blocking until it has left its park
// loop, or withdraws a pending suspend request. It reports whether either
// was performed.
func (t *Thread) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.state&Suspended != 0:
		gen := t.parkGen
		t.state &^= Suspended | SuspendRequested
		t.cond.Broadcast()
		for t.unparkGen < gen && t.state&Stopped == 0 {
			t.cond.Wait()
		}
		return true

	case t.state&SuspendRequested != 0:
		t.state &^= SuspendRequested
		t.cond.Broadcast()
		return true

	default:
		return false
	}
}

// SafePoint parks the thread if a suspend was requested, and it holds no
// Mutex. It has no effect unless called by the thread itself.
//
// Long-running code that does not otherwise block should call SafePoint
// periodically, e.g. once per loop iteration.
func (t *Thread) SafePoint() {
	if !t.isSelf() {
		return
	}
	t.mu.Lock()
	t.safePointLocked()
	t.mu.Unlock()
}

// lockWaitSafePoint is the safe point of blocking Lock waits, which must be
// performed by the thread itself. It reports whether the thread parked.
func (t *Thread) lockWaitSafePoint() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.safePointLocked()
}

// safePointLocked must be called by the thread itself, with mu held.
func (t *Thread) safePointLocked() bool {
	if t.state&SuspendRequested != 0 &&
		t.state&WaitSleepJoin == 0 &&
		t.locksHeld.Load() == 0 {
		t.parkLocked()
		return true
	}
	return false
}

// parkLocked blocks the thread, which must be the caller, until resumed.
// Must be called with mu held.
func (t *Thread) parkLocked() {
	t.state &^= SuspendRequested
	t.state |= Suspended
	t.parkGen++
	gen := t.parkGen
	t.cond.Broadcast()

	t.logger.Debug().Uint64(`park_gen`, gen).Log(`thread suspended`)

	for t.state&Suspended != 0 {
		t.cond.Wait()
	}

	t.unparkGen = gen
	t.cond.Broadcast()

	t.logger.Debug().Uint64(`park_gen`, gen).Log(`thread resumed`)
}
