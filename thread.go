// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Thread is the per-thread context object of a logical runtime thread.
//
// A Thread executes on exactly one goroutine, locked to its own OS thread
// while running. Threads are created with Runtime.NewThread (or registered
// with Runtime.Attach), and must not be copied.
//
// Thread Safety:
// The control methods (Suspend, Resume, Interrupt, Abort, State, Join, etc.)
// are safe to call from any goroutine. Sleep, SelfAborting, AbortReset and
// SafePoint must be called by the thread itself.
type Thread struct { //nolint:govet // betteralign:ignore
	rt     *Runtime
	fn     func(t *Thread)
	name   string
	id     int64
	logger *logiface.Logger[logiface.Event]

	// wake is nudged by anything that needs a blocked thread to recheck its
	// state: signals, interrupts, aborts and suspend requests.
	wake chan struct{}
	// done is closed once the thread has stopped.
	done chan struct{}

	// goid is the id of the goroutine bound to this thread, or 0.
	goid atomic.Uint64
	// osTID is the kernel thread id, when supported.
	osTID atomic.Int64
	// locksHeld counts suspend-safe mutexes held by this thread. It is only
	// modified by the thread itself.
	locksHeld atomic.Int32
	// waitingOn is the Lock this thread is currently queued on, written by
	// the thread itself while holding that Lock's mutex.
	waitingOn atomic.Pointer[Lock]

	mu   sync.Mutex
	cond sync.Cond // L is &mu, broadcast on every park, unpark and stop

	// guarded by mu
	state     ThreadState
	parkGen   uint64
	unparkGen uint64
	cleanups  []*cleanupHandler
	panicked  any
	attached  bool

	// monitor free list, only accessed by the thread itself
	freeMonitors []*Monitor
}

type cleanupHandler struct {
	fn func(t *Thread)
}

func newThread(rt *Runtime, fn func(t *Thread), opts *threadOptions) *Thread {
	t := &Thread{
		rt:    rt,
		fn:    fn,
		name:  opts.name,
		id:    rt.nextThreadID.Add(1),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		state: Unstarted,
	}
	if opts.background {
		t.state |= Background
	}
	t.cond.L = &t.mu
	t.logger = rt.threadLogger(t)
	return t
}

// ID returns the runtime-unique identifier of the thread.
func (t *Thread) ID() int64 { return t.id }

// Name returns the name configured via WithName.
func (t *Thread) Name() string { return t.name }

// Runtime returns the Runtime that owns the thread.
func (t *Thread) Runtime() *Runtime { return t.rt }

// String implements fmt.Stringer.
func (t *Thread) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.name != "" {
		return fmt.Sprintf("Thread(%d, %q)", t.id, t.name)
	}
	return fmt.Sprintf("Thread(%d)", t.id)
}

// OSThreadID returns the kernel thread id the thread is bound to, or 0 if
// unknown (not started, or unsupported platform).
func (t *Thread) OSThreadID() int64 { return t.osTID.Load() }

// State returns the public state flags of the thread.
func (t *Thread) State() ThreadState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state & publicStates
}

// WaitingOn returns the Lock the thread is currently blocked on, or nil.
// The value is only a snapshot, intended for diagnostics.
func (t *Thread) WaitingOn() *Lock { return t.waitingOn.Load() }

// LocksHeld returns the number of suspend-safe mutexes held by the thread.
func (t *Thread) LocksHeld() int { return int(t.locksHeld.Load()) }

// Done returns a channel that is closed once the thread has stopped.
func (t *Thread) Done() <-chan struct{} { return t.done }

// Panic returns the value recovered from a panic in the thread function, or
// nil.
func (t *Thread) Panic() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.panicked
}

// IsBackground reports whether the thread is a background thread.
func (t *Thread) IsBackground() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state&Background != 0
}

// SetBackground changes whether the thread is a background thread, updating
// the Runtime's thread counts if it is running.
func (t *Thread) SetBackground(background bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if (t.state&Background != 0) == background {
		return
	}
	if background {
		t.state |= Background
	} else {
		t.state &^= Background
	}
	if t.state&(Unstarted|Stopped) == 0 {
		t.rt.backgroundChanged(background)
	}
}

// Start begins execution of the thread function, on a new goroutine locked
// to its own OS thread.
func (t *Thread) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state&Unstarted == 0 || t.attached {
		return ErrThreadStarted
	}
	if err := t.rt.started(t, t.state&Background != 0); err != nil {
		return err
	}
	t.state &^= Unstarted
	go t.run()
	return nil
}

func (t *Thread) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	t.bind()
	defer t.exit()

	t.logger.Debug().Log(`thread started`)

	defer func() {
		if r := recover(); r != nil {
			t.mu.Lock()
			t.panicked = r
			t.mu.Unlock()
			t.logger.Err().
				Str(`panic`, fmt.Sprint(r)).
				Log(`thread function panicked`)
		}
	}()

	// a suspend may have been requested prior to the goroutine starting
	t.SafePoint()

	t.fn(t)
}

// bind associates the thread with the calling goroutine.
func (t *Thread) bind() {
	t.goid.Store(getGoroutineID())
	t.osTID.Store(currentOSThreadID())
	t.rt.bind(t)
}

// exit runs cleanup handlers then marks the thread stopped, releasing
// joiners and any pending suspender.
func (t *Thread) exit() {
	t.mu.Lock()
	handlers := t.cleanups
	t.cleanups = nil
	t.mu.Unlock()

	for i := len(handlers) - 1; i >= 0; i-- {
		t.runCleanup(handlers[i])
	}

	t.rt.monitors.releaseThread(t)

	t.mu.Lock()
	t.state &^= SuspendRequested | Suspended | WaitSleepJoin | StopRequested | interrupted
	t.state |= Stopped
	background := t.state&Background != 0
	t.cond.Broadcast()
	t.mu.Unlock()

	t.rt.stopped(t, background)
	close(t.done)

	t.logger.Debug().Log(`thread stopped`)
}

func (t *Thread) runCleanup(h *cleanupHandler) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Err().
				Str(`panic`, fmt.Sprint(r)).
				Log(`thread cleanup handler panicked`)
		}
	}()
	h.fn(t)
}

// RegisterCleanup registers fn to be called on the thread, just before it
// stops. Handlers run in reverse order of registration. The returned func
// unregisters the handler, and reports whether it was still registered.
func (t *Thread) RegisterCleanup(fn func(t *Thread)) (unregister func() bool) {
	if fn == nil {
		panic(`vmthread: nil cleanup handler`)
	}
	h := &cleanupHandler{fn: fn}
	t.mu.Lock()
	t.cleanups = append(t.cleanups, h)
	t.mu.Unlock()
	return func() bool {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, v := range t.cleanups {
			if v == h {
				t.cleanups = append(t.cleanups[:i], t.cleanups[i+1:]...)
				return true
			}
		}
		return false
	}
}

// isSelf reports whether the caller is running on the thread.
func (t *Thread) isSelf() bool {
	id := t.goid.Load()
	return id != 0 && id == getGoroutineID()
}

// poke nudges the thread, if it is blocked, to recheck its state.
func (t *Thread) poke() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Yield gives up the processor, allowing other goroutines to run.
func Yield() { runtime.Gosched() }
