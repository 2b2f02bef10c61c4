// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"sync/atomic"
)

// Monitor is a reentrant mutual exclusion lock with a condition queue, the
// synchronization model of managed objects (Enter, Exit, Wait, Pulse,
// PulseAll).
//
// Ownership is tracked per Thread. Exit, Wait, Pulse and PulseAll fail with
// ErrSyncLock, and leave the monitor untouched, unless called by the owner.
//
// Instances must be created using NewMonitor, or obtained via MonitorPool.
type Monitor struct {
	entry   *Lock // binary, 1 while unowned
	waiters *Lock // never banks, released by Pulse and PulseAll
	owner   atomic.Pointer[Thread]
	count   atomic.Int32 // written only by the owner

	// guarded by MonitorPool.mu
	slot  *MonitorSlot
	users int
}

// NewMonitor creates a new, unowned, Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		entry:   NewLock(1),
		waiters: NewLock(0),
	}
}

// Close checks that the monitor may be discarded, failing with ErrSyncLock
// if it is owned, or any thread is blocked on it.
func (m *Monitor) Close() error {
	if m.owner.Load() != nil || m.entry.Waiters() != 0 || m.waiters.Waiters() != 0 {
		return ErrSyncLock
	}
	return nil
}

// Owner returns the owning thread, or nil.
func (m *Monitor) Owner() *Thread { return m.owner.Load() }

// Count returns the recursion count of the current owner, 0 if unowned.
func (m *Monitor) Count() int { return int(m.count.Load()) }

// Waiters returns the number of threads blocked in Wait.
func (m *Monitor) Waiters() int { return m.waiters.Waiters() }

// Enter acquires the monitor, blocking in the WaitSleepJoin state if
// necessary. The wait may be cancelled by Thread.Interrupt or Thread.Abort,
// but once the monitor is acquired, Enter succeeds, leaving any concurrent
// interrupt pending.
func (m *Monitor) Enter(t *Thread) error {
	return m.enter(t, deadline{infinite: true})
}

// TryEnter acquires the monitor only if it is immediately available, failing
// with ErrBusy otherwise.
func (m *Monitor) TryEnter(t *Thread) error {
	return m.enter(t, deadline{poll: true})
}

// TimedTryEnter is Enter, but fails with ErrBusy if the timeout elapses
// first.
func (m *Monitor) TimedTryEnter(t *Thread, ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}
	return m.enter(t, d)
}

func (m *Monitor) enter(t *Thread, d deadline) error {
	if t == nil {
		panic(`vmthread: nil thread`)
	}
	if m.owns(t) {
		m.count.Add(1)
		return nil
	}

	if m.entry.TryWait() == nil {
		m.acquired(t, 1)
		return nil
	}
	if d.poll {
		return ErrBusy
	}

	if err := t.enterWaitState(); err != nil {
		return err
	}

	err := m.entry.wait(t, d, true)
	if err == nil {
		m.acquired(t, 1)
	}

	return t.leaveWaitState(err, err == nil)
}

// lockUninterruptible is Enter, ignoring interrupt and abort requests, and
// without entering a wait state.
func (m *Monitor) lockUninterruptible(t *Thread) {
	if m.owns(t) {
		m.count.Add(1)
		return
	}
	m.reacquire(t, 1)
}

func (m *Monitor) acquired(t *Thread, count int32) {
	m.owner.Store(t)
	m.count.Store(count)
}

// release gives up ownership, returning the recursion count.
func (m *Monitor) release() int32 {
	count := m.count.Swap(0)
	m.owner.Store(nil)
	_ = m.entry.Signal() // binary, cannot overflow
	return count
}

// Exit decrements the recursion count, releasing the monitor once it drops
// to zero.
func (m *Monitor) Exit(t *Thread) error {
	if !m.owns(t) {
		m.unowned(t, `exit`)
		return ErrSyncLock
	}
	if m.count.Add(-1) == 0 {
		m.owner.Store(nil)
		_ = m.entry.Signal()
	}
	return nil
}

// Wait releases the monitor, and blocks in the WaitSleepJoin state until
// pulsed, the timeout elapses (ErrBusy), or the wait is cancelled
// (ErrInterrupted, ErrAborted). The monitor is always re-acquired, with the
// same recursion count, before Wait returns.
//
// A zero timeout releases and re-acquires the monitor, giving other threads
// a chance to enter, returning ErrBusy.
func (m *Monitor) Wait(t *Thread, ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}

	if !m.owns(t) {
		m.unowned(t, `wait`)
		return ErrSyncLock
	}

	if err := t.enterWaitState(); err != nil {
		return err
	}

	if d.poll {
		count := m.release()
		Yield()
		m.reacquire(t, count)
		return t.leaveWaitState(ErrBusy, false)
	}

	// queued before the release, so a pulse in between is not lost
	w, err := m.waiters.enqueue(t, d, true)
	if w == nil {
		return t.leaveWaitState(err, false)
	}

	count := m.release()

	err = m.waiters.await(t, w, d, true)

	m.reacquire(t, count)

	return t.leaveWaitState(err, err == nil)
}

func (m *Monitor) reacquire(t *Thread, count int32) {
	_ = m.entry.WaitUninterruptible(t)
	m.acquired(t, count)
}

// Pulse releases the longest waiting thread blocked in Wait, if any.
func (m *Monitor) Pulse(t *Thread) error {
	if !m.owns(t) {
		m.unowned(t, `pulse`)
		return ErrSyncLock
	}
	m.waiters.wakeWaiters(1)
	return nil
}

// PulseAll releases every thread blocked in Wait.
func (m *Monitor) PulseAll(t *Thread) error {
	if !m.owns(t) {
		m.unowned(t, `pulse_all`)
		return ErrSyncLock
	}
	m.waiters.wakeWaiters(-1)
	return nil
}

func (m *Monitor) owns(t *Thread) bool {
	return t != nil && m.owner.Load() == t
}

func (m *Monitor) unowned(t *Thread, op string) {
	if t == nil {
		return
	}
	if b := t.rt.diag.warning(`monitor_unowned`, m); b != nil {
		b.Str(`op`, op).
			Int64(`thread`, t.id).
			Log(`monitor operation by non-owner`)
	}
}
