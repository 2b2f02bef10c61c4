// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type (
	// FinalizerConfig models optional configuration, for Runtime.NewFinalizer.
	FinalizerConfig struct {
		// Name is the name of the finalizer thread.
		// **Defaults to "finalizer", if empty, or FinalizerConfig is nil.**
		Name string

		// MaxPending restricts the number of queued finalizers, if positive,
		// causing Finalizer.Enqueue to fail with ErrBusy.
		// **Defaults to 0 (unbounded).**
		MaxPending int
	}

	// Finalizer runs queued finalizer functions on a dedicated background
	// thread, when requested via Invoke. Instances must be created using
	// Runtime.NewFinalizer.
	//
	// The Finalizer.Close method and/or Finalizer.Shutdown method should be
	// called when the Finalizer is no longer needed.
	Finalizer struct { //nolint:govet // betteralign:ignore
		rt         *Runtime
		thread     *Thread
		maxPending int
		signal     *WaitEvent // auto reset, set to request a pass
		stopOnce   sync.Once
		closed     atomic.Bool

		queueMu sync.Mutex
		queue   []func()

		// guarded by monitor
		monitor   *Monitor
		requested uint64
		completed uint64
		disabled  int
		running   bool
		stopped   bool
	}
)

// NewFinalizer creates and starts a Finalizer, using the provided config,
// which may be nil.
func (x *Runtime) NewFinalizer(config *FinalizerConfig) (*Finalizer, error) {
	f := &Finalizer{
		rt:      x,
		signal:  NewWaitEvent(false, false),
		monitor: NewMonitor(),
	}

	name := `finalizer`
	if config != nil {
		if config.Name != `` {
			name = config.Name
		}
		f.maxPending = config.MaxPending
	}

	t, err := x.NewThread(f.run, WithName(name), WithBackground(true))
	if err != nil {
		return nil, err
	}
	f.thread = t

	if err := t.Start(); err != nil {
		return nil, err
	}

	return f, nil
}

// Thread returns the finalizer thread.
func (f *Finalizer) Thread() *Thread { return f.thread }

// Pending returns the number of queued finalizers.
func (f *Finalizer) Pending() int {
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	return len(f.queue)
}

// Enqueue queues fn, to be run by the next finalizer pass. It may be called
// from any goroutine. It fails with ErrRuntimeClosed once the Finalizer is
// stopping, or ErrBusy if MaxPending would be exceeded.
func (f *Finalizer) Enqueue(fn func()) error {
	if fn == nil {
		panic(`vmthread: nil finalizer`)
	}
	if f.closed.Load() {
		return ErrRuntimeClosed
	}
	f.queueMu.Lock()
	defer f.queueMu.Unlock()
	if f.maxPending > 0 && len(f.queue) >= f.maxPending {
		return ErrBusy
	}
	f.queue = append(f.queue, fn)
	return nil
}

// Invoke runs a finalizer pass, waiting for it to complete.
//
// If t is the finalizer thread, or the only running thread of the runtime
// (e.g. the finalizer thread has stopped), the pass is run synchronously, on
// t, failing with ErrBusy if finalizers are disabled. Otherwise, the
// finalizer thread is signalled, and t waits for at most ms, failing with
// ErrBusy if the pass did not complete in time. The wait is interruptible.
func (f *Finalizer) Invoke(t *Thread, ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}

	if t == f.thread || f.rt.NumThreads() == 1 {
		return f.pass(t, false)
	}

	f.monitor.lockUninterruptible(t)
	defer f.monitor.Exit(t)

	if f.stopped {
		return ErrRuntimeClosed
	}

	f.requested++
	gen := f.requested
	f.signal.Set()

	for f.completed < gen {
		if f.stopped {
			return ErrRuntimeClosed
		}
		if err = f.monitor.Wait(t, d.remaining()); err != nil {
			break
		}
	}

	if f.completed >= gen {
		return nil
	}

	return err
}

// Disable prevents further finalizer passes until Enable is called, waiting
// for at most ms for a pass in progress to complete. It reports whether
// finalizers were disabled.
func (f *Finalizer) Disable(t *Thread, ms Timeout) bool {
	d, err := deadlineOf(ms)
	if err != nil {
		return false
	}

	f.monitor.lockUninterruptible(t)
	defer f.monitor.Exit(t)

	f.disabled++
	for f.running && t != f.thread {
		if err := f.monitor.Wait(t, d.remaining()); err != nil && f.running {
			f.disabled--
			f.monitor.PulseAll(t)
			return false
		}
	}

	return true
}

// Enable reverses a successful call to Disable.
func (f *Finalizer) Enable(t *Thread) {
	f.monitor.lockUninterruptible(t)
	defer f.monitor.Exit(t)

	if f.disabled == 0 {
		return
	}
	f.disabled--
	if f.disabled == 0 {
		f.monitor.PulseAll(t)
		if f.requested > f.completed {
			f.signal.Set()
		}
	}
}

// Shutdown prevents further calls to Enqueue, then waits for the finalizer
// thread to run any remaining finalizers, and stop. If ctx is done first,
// the finalizer thread is aborted, and ctx.Err() is returned, once it stops.
//
// This method is unsafe to call from within a finalizer.
func (f *Finalizer) Shutdown(ctx context.Context) (err error) {
	f.stop()

	select {
	case <-ctx.Done():
		err = ctx.Err()
		f.thread.Abort()
		<-f.thread.Done()
	case <-f.thread.Done():
	}

	return err
}

// Close aborts the finalizer thread, discarding any remaining finalizers,
// blocking until it stops.
//
// This method is unsafe to call from within a finalizer.
func (f *Finalizer) Close() error {
	f.stop()
	f.thread.Abort()
	<-f.thread.Done()
	return nil
}

func (f *Finalizer) stop() {
	f.stopOnce.Do(func() {
		f.closed.Store(true)
		f.signal.Set()
	})
}

func (f *Finalizer) run(t *Thread) {
	defer func() {
		// wake invokers, so they observe the stop
		f.monitor.lockUninterruptible(t)
		f.stopped = true
		f.monitor.PulseAll(t)
		f.monitor.Exit(t)
	}()

	for {
		err := f.signal.Wait(t, Infinite)
		switch ResultOf(err) {
		case OK:
		case ErrInterrupted:
			continue
		default:
			return
		}

		if err := f.pass(t, true); ResultOf(err) == ErrAborted {
			return
		}

		if f.closed.Load() {
			return
		}
	}
}

// pass runs every queued finalizer, on t. If block is false, a disabled
// Finalizer fails with ErrBusy, rather than waiting to be enabled.
func (f *Finalizer) pass(t *Thread, block bool) error {
	f.monitor.lockUninterruptible(t)
	for f.disabled != 0 {
		if !block {
			f.monitor.Exit(t)
			return ErrBusy
		}
		// interrupts are ignored, as in run, keeping the request pending
		if err := f.monitor.Wait(t, Infinite); ResultOf(err) == ErrAborted {
			f.monitor.Exit(t)
			return err
		}
	}
	gen := f.requested
	f.running = true
	f.monitor.Exit(t)

	n := f.drain(t)

	f.monitor.lockUninterruptible(t)
	f.running = false
	f.completed = max(f.completed, gen)
	f.monitor.PulseAll(t)
	f.monitor.Exit(t)

	if n != 0 {
		t.logger.Debug().Int(`count`, n).Log(`finalizer pass complete`)
	}

	return nil
}

func (f *Finalizer) drain(t *Thread) (n int) {
	for {
		f.queueMu.Lock()
		batch := f.queue
		f.queue = nil
		f.queueMu.Unlock()

		if len(batch) == 0 {
			return n
		}

		for _, fn := range batch {
			f.call(t, fn)
			n++
			t.SafePoint()
		}
	}
}

func (f *Finalizer) call(t *Thread, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if b := f.rt.diag.warning(`finalizer_panic`, f); b != nil {
				b.Str(`panic`, fmt.Sprint(r)).
					Int64(`thread`, t.id).
					Log(`finalizer panicked`)
			}
		}
	}()
	fn()
}
