// Package vmthread implements the thread control and synchronization core of
// a managed runtime: cooperative suspend and resume, interrupt and abort,
// counting locks, semaphores, events, and reentrant monitors with
// Wait/Pulse/PulseAll.
//
// # Architecture
//
// A [Runtime] owns a set of [Thread] values. Each thread runs on its own
// goroutine, locked to an OS thread, either started via [Runtime.NewThread]
// and [Thread.Start], or registered via [Runtime.Attach]. The synchronization
// primitives take the calling thread as their first argument, in the way a
// context.Context is threaded through a call chain.
//
// Every blocking primitive is built on [Lock], a counting lock with a FIFO
// queue of waiters. A signal hands its permit to a specific queued waiter, so
// interrupting a waiter never loses or duplicates a permit. [CountSemaphore],
// [WaitEvent], [Mutex] and [Monitor] are layered on top. [MonitorPool]
// lazily attaches monitors to objects, via an embeddable [MonitorSlot].
//
// [WaitEvent] and [WaitMutex] are also a [WaitHandle], and may be waited on
// together, via [WaitAny], [WaitAll] and [SignalAndWait].
//
// # Suspension
//
// Suspension is cooperative. [Thread.SuspendRequest] records the request,
// which the target honors at its next safe point:
//   - [Thread.SafePoint], called periodically by long running code
//   - the release of the last [Mutex] held by the thread
//   - entry to, and exit from, a wait, sleep or join
//   - wakeups while blocked on a [Lock]
//
// A thread holding a [Mutex] is never suspended, and a thread blocked in the
// WaitSleepJoin state is suspended once it leaves that state.
//
// # Cancellation
//
// [Thread.Interrupt] and [Thread.Abort] set sticky flags, then nudge the
// thread. An interrupt is consumed by the next interruptible wait, which
// returns [ErrInterrupted]. An abort is reported as [ErrAborted] by every
// interruptible wait, until observed via [Thread.SelfAborting], or cancelled
// via [Thread.AbortReset].
//
// # Results
//
// Blocking operations return nil, or one of the [Result] values, e.g.
// [ErrBusy] when a timeout elapses. Timeouts are in milliseconds ([Timeout]),
// where 0 polls, and [Infinite] blocks without limit.
//
// # Usage
//
//	rt, err := vmthread.New(vmthread.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Shutdown(context.Background())
//
//	mon := vmthread.NewMonitor()
//	worker, err := rt.NewThread(func(t *vmthread.Thread) {
//	    if err := mon.Enter(t); err != nil {
//	        return
//	    }
//	    defer mon.Exit(t)
//	    _ = mon.Wait(t, vmthread.Infinite)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = worker.Start()
package vmthread
