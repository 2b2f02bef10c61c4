// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"sync/atomic"
)

// WaitHandle is a waitable object, accepted by WaitOne, WaitAny, WaitAll and
// SignalAndWait. It is implemented by WaitEvent and WaitMutex.
type WaitHandle interface {
	// register queues t as a member of g, unless the handle was acquired
	// immediately, or g no longer accepts grants (w == nil, !acquired).
	register(t *Thread, g *multiWait) (w *lockWaiter, acquired bool)
	// unregister removes w, reporting whether it was granted.
	unregister(w *lockWaiter) (granted bool)
	// acquired completes an acquisition, on t.
	acquired(t *Thread)
	// release gives back an acquisition, after a failed wait.
	release(t *Thread)
	// signal is the signalling half of SignalAndWait.
	signal(t *Thread) error
}

// multiWait is shared by the waiters of a thread queued on several handles.
// need is the number of grants still accepted: 0 once satisfied, and -1 once
// abandoned by the waiting thread.
type multiWait struct {
	need atomic.Int32
}

func newMultiWait(need int) *multiWait {
	g := new(multiWait)
	g.need.Store(int32(need))
	return g
}

func (g *multiWait) claim() bool {
	for {
		n := g.need.Load()
		if n <= 0 {
			return false
		}
		if g.need.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (g *multiWait) satisfied() bool { return g.need.Load() == 0 }

// abandon stops further grants. It fails if g was satisfied first.
func (g *multiWait) abandon() bool {
	for {
		n := g.need.Load()
		switch {
		case n == 0:
			return false
		case n < 0:
			return true
		case g.need.CompareAndSwap(n, -1):
			return true
		}
	}
}

// WaitOne blocks until h is acquired, in the WaitSleepJoin state. It returns
// nil, ErrBusy on timeout, ErrInterrupted, ErrAborted, or ErrInvalidTimeout.
func WaitOne(t *Thread, h WaitHandle, ms Timeout) error {
	_, err := waitHandles(t, []WaitHandle{h}, ms, false, nil)
	return err
}

// WaitAny blocks until any one of handles is acquired, returning its index.
// If several are available, the lowest index is acquired. On failure, the
// index is -1, and no handle is held.
func WaitAny(t *Thread, handles []WaitHandle, ms Timeout) (int, error) {
	return waitHandles(t, handles, ms, false, nil)
}

// WaitAll blocks until every one of handles is acquired. Handles that become
// available are acquired as they do, and given back if the wait fails. A
// panic will occur if handles contains duplicates.
func WaitAll(t *Thread, handles []WaitHandle, ms Timeout) error {
	seen := make(map[WaitHandle]struct{}, len(handles))
	for _, h := range handles {
		if _, ok := seen[h]; ok {
			panic(`vmthread: duplicate wait handle`)
		}
		seen[h] = struct{}{}
	}
	_, err := waitHandles(t, handles, ms, true, nil)
	return err
}

// SignalAndWait signals one handle, and waits on another, without a window
// in which a signal of wait could be missed. Signalling a WaitEvent sets it,
// and signalling a WaitMutex releases it, failing with ErrSyncLock if t is
// not the owner, in which case nothing is waited for.
func SignalAndWait(t *Thread, signal, wait WaitHandle, ms Timeout) error {
	if signal == nil {
		panic(`vmthread: nil wait handle`)
	}
	_, err := waitHandles(t, []WaitHandle{wait}, ms, false, signal)
	return err
}

func waitHandles(t *Thread, handles []WaitHandle, ms Timeout, all bool, signal WaitHandle) (index int, err error) {
	d, err := deadlineOf(ms)
	if err != nil {
		return -1, err
	}
	if t == nil {
		panic(`vmthread: nil thread`)
	}
	if len(handles) == 0 {
		panic(`vmthread: no wait handles`)
	}
	for _, h := range handles {
		if h == nil {
			panic(`vmthread: nil wait handle`)
		}
	}

	if err := t.enterWaitState(); err != nil {
		return -1, err
	}

	need := 1
	if all {
		need = len(handles)
	}
	g := newMultiWait(need)

	waiters := make([]*lockWaiter, len(handles))
	acquired := make([]bool, len(handles))
	for i, h := range handles {
		w, ok := h.register(t, g)
		if ok {
			acquired[i] = true
			h.acquired(t)
		}
		waiters[i] = w
		if (w == nil && !ok) || g.satisfied() {
			break
		}
	}

	// registered first, so a response to the signal is not missed
	if signal != nil {
		err = signal.signal(t)
		if err != nil {
			g.abandon()
		}
	}

	timerC, stop := d.timer()
	defer stop()

	var timedOut bool
	for err == nil && !g.satisfied() {
		if d.poll || timedOut {
			if g.abandon() {
				err = ErrBusy
			}
			break
		}
		if t.cancelPending() {
			if g.abandon() {
				err = t.takeCancel()
			}
			break
		}
		timedOut = t.block(timerC)
	}

	for i, w := range waiters {
		if w != nil && handles[i].unregister(w) {
			acquired[i] = true
			handles[i].acquired(t)
		}
	}

	index = -1
	for i, ok := range acquired {
		if !ok {
			continue
		}
		if err != nil {
			handles[i].release(t)
		} else if index == -1 {
			index = i
		}
	}

	err = t.leaveWaitState(err, err == nil)
	if err != nil {
		index = -1
	}

	return index, err
}
