// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"math"
	"sync"

	"github.com/joeycumines/go-vmthread/internal/waitq"
)

// Lock is a counting lock, the primitive underlying the other synchronization
// types. It holds a number of permits, and a FIFO queue of waiting threads.
//
// A positive value is the number of banked permits. A negative value is the
// number of queued waiters, negated. Signal hands its permit directly to the
// oldest waiter, if any, so a permit is never granted twice, and a waiter
// that gives up (timeout, interrupt or abort) returns its slot.
//
// Instances must be created using NewLock.
type Lock struct {
	mu    sync.Mutex
	value int32
	queue waitq.Queue[*lockWaiter]
}

type lockWaiter struct {
	thread  *Thread
	node    *waitq.Node[*lockWaiter]
	group   *multiWait // nil unless queued by WaitAny, WaitAll or SignalAndWait
	granted bool       // guarded by Lock.mu
}

// NewLock creates a new Lock with the given number of initial permits, which
// must not be negative.
func NewLock(initial int32) *Lock {
	if initial < 0 {
		panic(`vmthread: negative initial lock value`)
	}
	return &Lock{value: initial}
}

// Close checks that the lock may be discarded, failing with ErrSyncLock if
// any thread is currently blocked on it.
func (l *Lock) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queue.Len() != 0 {
		return ErrSyncLock
	}
	return nil
}

// Value returns the current value, see Lock.
func (l *Lock) Value() int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value
}

// Waiters returns the number of queued threads.
func (l *Lock) Waiters() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// Signal releases one permit, waking the oldest waiter, or banking the
// permit if there are none. It fails with ErrInvalidReleaseCount if banking
// the permit would exceed math.MaxInt32.
func (l *Lock) Signal() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signalLocked()
}

// SignalCount performs n signals, atomically. It fails with
// ErrInvalidReleaseCount if n is zero, or exceeds math.MaxInt32, or if the
// banked permits would exceed math.MaxInt32.
func (l *Lock) SignalCount(n uint32) error {
	if n == 0 || n > math.MaxInt32 {
		return ErrInvalidReleaseCount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if int64(l.value)+int64(n) > math.MaxInt32 {
		return ErrInvalidReleaseCount
	}
	for range n {
		if err := l.signalLocked(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lock) signalLocked() error {
	if l.grantLocked() {
		return nil
	}
	if l.value == math.MaxInt32 {
		return ErrInvalidReleaseCount
	}
	l.value++
	return nil
}

// grantLocked hands a permit to the oldest waiter that can accept it. Waiters
// of a multiWait that is already complete are dropped from the queue.
func (l *Lock) grantLocked() bool {
	for {
		w, ok := l.queue.PopFront()
		if !ok {
			return false
		}
		l.value++
		if w.group != nil && !w.group.claim() {
			continue
		}
		w.granted = true
		w.thread.poke()
		return true
	}
}

// wakeWaiters grants a permit to at most n of the currently queued waiters,
// without banking any surplus, returning the number released. A negative n
// releases every waiter.
func (l *Lock) wakeWaiters(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wakeWaitersLocked(n)
}

func (l *Lock) wakeWaitersLocked(n int) (released int) {
	for (n < 0 || released < n) && l.grantLocked() {
		released++
	}
	return released
}

// TryWait takes a permit if one is available, without blocking, failing
// with ErrBusy otherwise.
func (l *Lock) TryWait() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.value > 0 {
		l.value--
		return nil
	}
	return ErrBusy
}

// WaitInterruptible blocks until a permit is taken, or the wait is cancelled
// by Thread.Interrupt (ErrInterrupted) or Thread.Abort (ErrAborted).
func (l *Lock) WaitInterruptible(t *Thread) error {
	return l.wait(t, deadline{infinite: true}, true)
}

// TimedWaitInterruptible is WaitInterruptible, but fails with ErrBusy if the
// timeout elapses first.
func (l *Lock) TimedWaitInterruptible(t *Thread, ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}
	return l.wait(t, d, true)
}

// WaitUninterruptible blocks until a permit is taken. Interrupt and abort
// requests are ignored, and remain pending. It always returns nil.
func (l *Lock) WaitUninterruptible(t *Thread) error {
	return l.wait(t, deadline{infinite: true}, false)
}

// TimedWaitUninterruptible is WaitUninterruptible, but fails with ErrBusy if
// the timeout elapses first.
func (l *Lock) TimedWaitUninterruptible(t *Thread, ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}
	return l.wait(t, d, false)
}

func (l *Lock) wait(t *Thread, d deadline, interruptible bool) error {
	if t == nil {
		panic(`vmthread: nil thread`)
	}
	t.lockWaitSafePoint()
	w, err := l.enqueue(t, d, interruptible)
	if w == nil {
		return err
	}
	return l.await(t, w, d, interruptible)
}

// await blocks until w is granted, or the wait fails, in which case w is
// removed from the queue, and its slot returned.
func (l *Lock) await(t *Thread, w *lockWaiter, d deadline, interruptible bool) error {
	timerC, stop := d.timer()
	defer stop()

	var timedOut bool
	for {
		timedOut = t.block(timerC) || timedOut

		l.mu.Lock()
		if w.granted {
			t.waitingOn.CompareAndSwap(l, nil)
			l.mu.Unlock()
			return nil
		}
		var err error
		switch {
		case timedOut:
			err = ErrBusy
		case interruptible:
			err = t.takeCancel()
		}
		if err != nil {
			if l.queue.Remove(w.node) {
				l.value++
			}
			t.waitingOn.CompareAndSwap(l, nil)
			l.mu.Unlock()
			return err
		}
		l.mu.Unlock()

		// a grant (and its nudge) may arrive while parked
		if t.lockWaitSafePoint() {
			t.poke()
		}
	}
}

// enqueue takes a permit, or queues the caller. It returns a nil waiter if
// the wait completed immediately, along with the outcome.
func (l *Lock) enqueue(t *Thread, d deadline, interruptible bool) (*lockWaiter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.value > 0 {
		l.value--
		return nil, nil
	}

	if d.poll {
		return nil, ErrBusy
	}

	if interruptible {
		if err := t.takeCancel(); err != nil {
			return nil, err
		}
	}

	w := &lockWaiter{thread: t}
	w.node = l.queue.PushBack(w)
	l.value--
	t.waitingOn.Store(l)

	return w, nil
}

// register queues t as a member of g, or takes a permit immediately, if one
// is available and g accepts it.
func (l *Lock) register(t *Thread, g *multiWait) (w *lockWaiter, acquired bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.value > 0 {
		if !g.claim() {
			return nil, false
		}
		l.value--
		return nil, true
	}

	w = &lockWaiter{thread: t, group: g}
	w.node = l.queue.PushBack(w)
	l.value--

	return w, false
}

// unregister removes w, reporting whether it was granted a permit.
func (l *Lock) unregister(w *lockWaiter) (granted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w.granted {
		return true
	}
	if l.queue.Remove(w.node) {
		l.value++
	}
	return false
}
