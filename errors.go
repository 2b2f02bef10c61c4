// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"errors"
	"fmt"
)

// Result models the stable outcome domain of the blocking primitives. The
// numeric values match the codes surfaced to managed code by the runtime.
//
// Operations return a nil error for OK, and one of the non-OK Result values
// otherwise. Use ResultOf to map an error back into the domain.
type Result uint32

const (
	// OK indicates success. It is never returned as an error value.
	OK Result = 0x00000000

	// ErrInterrupted indicates that the wait was cancelled by Thread.Interrupt.
	ErrInterrupted Result = 0x000000C0

	// ErrBusy indicates that a timeout elapsed, or a non-blocking attempt
	// was unable to proceed. It is ordinary control flow.
	ErrBusy Result = 0x00000102

	// ErrInvalidTimeout indicates an out of range Timeout.
	ErrInvalidTimeout Result = 0x80131502

	// ErrSyncLock indicates an ownership contract violation, e.g. Monitor.Exit
	// by a thread that does not own the monitor. State is left untouched.
	ErrSyncLock Result = 0x80131518

	// ErrAborted indicates that the wait was cancelled by Thread.Abort.
	ErrAborted Result = 0x80131530

	// ErrInvalidReleaseCount indicates a release count of zero, or one that
	// exceeds math.MaxInt32.
	ErrInvalidReleaseCount Result = 0xFFFFFFFD

	// ErrOutOfMemory indicates a resource allocation failure.
	ErrOutOfMemory Result = 0xFFFFFFFE

	// ErrUnknown indicates any other failure.
	ErrUnknown Result = 0xFFFFFFFF
)

// Standard errors, outside the Result domain.
var (
	// ErrThreadStarted is returned by Thread.Start if the thread was already
	// started, or was attached.
	ErrThreadStarted = errors.New("vmthread: thread already started")

	// ErrThreadUnstarted is returned by Thread.Join if the target thread was
	// never started.
	ErrThreadUnstarted = errors.New("vmthread: thread not started")

	// ErrJoinSelf is returned by Thread.Join if a thread attempts to join
	// itself.
	ErrJoinSelf = errors.New("vmthread: thread cannot join itself")

	// ErrNotSelf is returned by operations that may only be performed by the
	// calling thread, on itself.
	ErrNotSelf = errors.New("vmthread: operation must be called by the thread itself")

	// ErrRuntimeClosed is returned when a Runtime has been shut down.
	ErrRuntimeClosed = errors.New("vmthread: runtime has been shut down")
)

// String returns a stable name for the result.
func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case ErrInterrupted:
		return "Interrupted"
	case ErrBusy:
		return "Busy"
	case ErrInvalidTimeout:
		return "InvalidTimeout"
	case ErrSyncLock:
		return "SyncLock"
	case ErrAborted:
		return "Aborted"
	case ErrInvalidReleaseCount:
		return "InvalidReleaseCount"
	case ErrOutOfMemory:
		return "OutOfMemory"
	case ErrUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Result(0x%08X)", uint32(r))
	}
}

// Error implements the error interface.
func (r Result) Error() string {
	switch r {
	case OK:
		return "vmthread: ok"
	case ErrInterrupted:
		return "vmthread: wait interrupted"
	case ErrBusy:
		return "vmthread: busy"
	case ErrInvalidTimeout:
		return "vmthread: invalid timeout"
	case ErrSyncLock:
		return "vmthread: object synchronization method was called from an unsynchronized block of code"
	case ErrAborted:
		return "vmthread: thread aborted"
	case ErrInvalidReleaseCount:
		return "vmthread: invalid release count"
	case ErrOutOfMemory:
		return "vmthread: out of memory"
	default:
		return "vmthread: unknown error: " + r.String()
	}
}

// ResultOf maps err into the Result domain. A nil error is OK, and any error
// that does not wrap a Result is ErrUnknown.
func ResultOf(err error) Result {
	if err == nil {
		return OK
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return ErrUnknown
}

// Cancelled reports whether err indicates an interrupt or abort.
func Cancelled(err error) bool {
	switch ResultOf(err) {
	case ErrInterrupted, ErrAborted:
		return true
	default:
		return false
	}
}
