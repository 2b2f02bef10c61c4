package vmthread

import (
	"sync"
)

// WaitEvent is a manual or automatic reset event. Waiting threads are
// released by Set. An automatic reset event releases a single waiter per
// Set, and is reset by the release, while a manual reset event releases
// every waiter, and stays set until Reset.
//
// Instances must be created using NewWaitEvent.
type WaitEvent struct {
	mu          sync.Mutex
	set         bool
	manualReset bool
	// lock holds the waiters, and is only ever signalled for queued waiters
	lock *Lock
}

// NewWaitEvent creates a new WaitEvent.
func NewWaitEvent(manualReset, initial bool) *WaitEvent {
	return &WaitEvent{
		set:         initial,
		manualReset: manualReset,
		lock:        NewLock(0),
	}
}

// IsSet reports whether the event is set.
func (e *WaitEvent) IsSet() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.set
}

// Set sets the event, releasing waiters.
func (e *WaitEvent) Set() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.manualReset {
		e.set = true
		e.lock.wakeWaiters(-1)
		return
	}
	if e.lock.wakeWaiters(1) == 0 {
		e.set = true
	}
}

// Reset clears the event.
func (e *WaitEvent) Reset() {
	e.mu.Lock()
	e.set = false
	e.mu.Unlock()
}

// Wait blocks until the event is set, in the WaitSleepJoin state. It returns
// nil, ErrBusy on timeout, ErrInterrupted, ErrAborted, or ErrInvalidTimeout.
func (e *WaitEvent) Wait(t *Thread, ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}

	if e.consume() {
		return nil
	}
	if d.poll {
		return ErrBusy
	}

	if err := t.enterWaitState(); err != nil {
		return err
	}

	e.mu.Lock()
	if e.consumeLocked() {
		e.mu.Unlock()
		return t.leaveWaitState(nil, true)
	}
	w, err := e.lock.enqueue(t, d, true)
	e.mu.Unlock()
	if w == nil {
		return t.leaveWaitState(err, err == nil)
	}

	err = e.lock.await(t, w, d, true)

	return t.leaveWaitState(err, err == nil)
}

func (e *WaitEvent) consume() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.consumeLocked()
}

func (e *WaitEvent) consumeLocked() bool {
	if !e.set {
		return false
	}
	if !e.manualReset {
		e.set = false
	}
	return true
}

func (e *WaitEvent) register(t *Thread, g *multiWait) (*lockWaiter, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.set {
		if !g.claim() {
			return nil, false
		}
		e.consumeLocked()
		return nil, true
	}
	return e.lock.register(t, g)
}

func (e *WaitEvent) unregister(w *lockWaiter) bool { return e.lock.unregister(w) }

func (e *WaitEvent) acquired(*Thread) {}

// release sets an automatic reset event again, passing the signal on.
func (e *WaitEvent) release(*Thread) {
	if !e.manualReset {
		e.Set()
	}
}

func (e *WaitEvent) signal(*Thread) error {
	e.Set()
	return nil
}
