// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Runtime owns a set of threads, and the shared state they synchronize
// through, e.g. the MonitorPool. Instances must be created using New.
type Runtime struct { //nolint:govet // betteralign:ignore
	id       uuid.UUID
	logger   *logiface.Logger[logiface.Event]
	diag     *diagnostics
	monitors *MonitorPool

	nextThreadID atomic.Int64

	// byGoroutine maps goroutine id to *Thread, for bound threads
	byGoroutine sync.Map

	mu            sync.Mutex
	threads       map[*Thread]struct{} // started or attached, not yet stopped
	numForeground int
	numBackground int
	changed       chan struct{} // closed and replaced when counts change
	closed        bool
}

// New creates a new Runtime.
func New(opts ...RuntimeOption) (*Runtime, error) {
	cfg, err := resolveRuntimeOptions(opts)
	if err != nil {
		return nil, err
	}

	x := &Runtime{
		id:      uuid.New(),
		threads: make(map[*Thread]struct{}),
		changed: make(chan struct{}),
	}

	x.logger = cfg.logger.Clone().
		Str(`runtime`, x.id.String()).
		Logger()

	x.diag = &diagnostics{logger: x.logger}
	if len(cfg.warningRates) != 0 {
		x.diag.limiter = catrate.NewLimiter(cfg.warningRates)
	}

	x.monitors = newMonitorPool(x, cfg.minFreeMonitors, cfg.maxFreeMonitors)

	return x, nil
}

// ID returns the unique identifier of the runtime, attached to all log
// events as the "runtime" field.
func (x *Runtime) ID() uuid.UUID { return x.id }

// Monitors returns the MonitorPool used to attach monitors to objects.
func (x *Runtime) Monitors() *MonitorPool { return x.monitors }

// NewThread creates a new, unstarted, thread, which will run fn once
// Thread.Start is called. A panic will occur if fn is nil.
func (x *Runtime) NewThread(fn func(t *Thread), opts ...ThreadOption) (*Thread, error) {
	if fn == nil {
		panic(`vmthread: nil thread function`)
	}
	cfg, err := resolveThreadOptions(opts)
	if err != nil {
		return nil, err
	}
	x.mu.Lock()
	closed := x.closed
	x.mu.Unlock()
	if closed {
		return nil, ErrRuntimeClosed
	}
	return newThread(x, fn, cfg), nil
}

// Attach registers the calling goroutine as a running thread, e.g. the
// main thread of the program. The calling goroutine is locked to its OS
// thread until Detach is called, which must happen on the same goroutine.
//
// If the calling goroutine is already bound to a thread of this runtime,
// that thread is returned.
func (x *Runtime) Attach(opts ...ThreadOption) (*Thread, error) {
	if t := x.Current(); t != nil {
		return t, nil
	}
	cfg, err := resolveThreadOptions(opts)
	if err != nil {
		return nil, err
	}

	t := newThread(x, nil, cfg)
	t.attached = true

	t.mu.Lock()
	if err := x.started(t, cfg.background); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.state &^= Unstarted
	t.mu.Unlock()

	runtime.LockOSThread()
	t.bind()

	t.logger.Debug().Log(`thread attached`)

	return t, nil
}

// Detach unregisters a thread created by Runtime.Attach, running its cleanup
// handlers and marking it stopped. It must be called by the thread itself.
func (t *Thread) Detach() error {
	t.mu.Lock()
	attached := t.attached && t.state&Stopped == 0
	t.mu.Unlock()
	if !attached || !t.isSelf() {
		return ErrNotSelf
	}
	t.exit()
	runtime.UnlockOSThread()
	return nil
}

// Current returns the thread bound to the calling goroutine, or nil.
func (x *Runtime) Current() *Thread {
	if v, ok := x.byGoroutine.Load(getGoroutineID()); ok {
		return v.(*Thread)
	}
	return nil
}

// Threads returns a snapshot of the running (started or attached, and not
// stopped) threads.
func (x *Runtime) Threads() []*Thread {
	x.mu.Lock()
	defer x.mu.Unlock()
	threads := make([]*Thread, 0, len(x.threads))
	for t := range x.threads {
		threads = append(threads, t)
	}
	return threads
}

// NumThreads returns the number of running threads.
func (x *Runtime) NumThreads() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.numForeground + x.numBackground
}

// NumForeground returns the number of running foreground threads.
func (x *Runtime) NumForeground() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.numForeground
}

// NumBackground returns the number of running background threads.
func (x *Runtime) NumBackground() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.numBackground
}

// WaitForegroundThreads blocks until every foreground thread, other than the
// caller, has stopped, or the timeout elapses. It reports whether the
// foreground threads stopped. An invalid timeout is treated as Infinite.
func (x *Runtime) WaitForegroundThreads(ms Timeout) bool {
	d, err := deadlineOf(ms)
	if err != nil {
		d = deadline{infinite: true}
	}

	self := 0
	if t := x.Current(); t != nil && !t.IsBackground() {
		self = 1
	}

	timerC, stop := d.timer()
	defer stop()

	for {
		x.mu.Lock()
		n, changed := x.numForeground, x.changed
		x.mu.Unlock()
		if n <= self {
			return true
		}
		if d.poll {
			return false
		}
		select {
		case <-changed:
		case <-timerC:
			return false
		}
	}
}

// Shutdown prevents the creation of new threads, then aborts every running
// thread other than the caller, waiting for them to stop. Threads that never
// observe the abort keep Shutdown waiting until ctx is done, in which case
// ctx.Err() is returned.
func (x *Runtime) Shutdown(ctx context.Context) error {
	x.mu.Lock()
	x.closed = true
	x.mu.Unlock()

	self := x.Current()

	for _, t := range x.Threads() {
		if t != self && !t.attached {
			t.Abort()
		}
	}

	for _, t := range x.Threads() {
		if t == self || t.attached {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.done:
		}
	}

	x.logger.Debug().Log(`runtime shut down`)

	return nil
}

// started registers t as running. Must be called with t.mu held.
func (x *Runtime) started(t *Thread, background bool) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return ErrRuntimeClosed
	}
	x.threads[t] = struct{}{}
	if background {
		x.numBackground++
	} else {
		x.numForeground++
	}
	x.notifyLocked()
	return nil
}

// stopped unregisters t.
func (x *Runtime) stopped(t *Thread, background bool) {
	if id := t.goid.Load(); id != 0 {
		x.byGoroutine.CompareAndDelete(id, t)
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.threads[t]; !ok {
		return
	}
	delete(x.threads, t)
	if background {
		x.numBackground--
	} else {
		x.numForeground--
	}
	x.notifyLocked()
}

// backgroundChanged moves a running thread between the counts. Must be
// called with t.mu held.
func (x *Runtime) backgroundChanged(background bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if background {
		x.numForeground--
		x.numBackground++
	} else {
		x.numBackground--
		x.numForeground++
	}
	x.notifyLocked()
}

func (x *Runtime) bind(t *Thread) {
	x.byGoroutine.Store(t.goid.Load(), t)
}

func (x *Runtime) notifyLocked() {
	close(x.changed)
	x.changed = make(chan struct{})
}
