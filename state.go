package vmthread

import (
	"strconv"
	"strings"
)

// ThreadState is a set of thread state flags. Flags are not mutually
// exclusive, e.g. a thread may be both WaitSleepJoin and SuspendRequested.
//
// State machine (suspension):
//
//	Running → SuspendRequested   [Thread.SuspendRequest]
//	SuspendRequested → Suspended [thread reaches a safe point]
//	Suspended → Running          [Thread.Resume, Thread.Abort]
//
// The numeric values match the public thread states of the runtime.
type ThreadState uint32

const (
	// Running is the empty set, a started thread that is not otherwise
	// flagged.
	Running ThreadState = 0x0000
	// StopRequested indicates the thread has been asked to stop.
	StopRequested ThreadState = 0x0001
	// SuspendRequested indicates the thread will suspend at its next safe point.
	SuspendRequested ThreadState = 0x0002
	// Background indicates the thread does not keep the runtime alive.
	Background ThreadState = 0x0004
	// Unstarted indicates Thread.Start has not been called.
	Unstarted ThreadState = 0x0008
	// Stopped indicates the thread has exited.
	Stopped ThreadState = 0x0010
	// WaitSleepJoin indicates the thread is blocked in a wait, sleep or join.
	WaitSleepJoin ThreadState = 0x0020
	// Suspended indicates the thread is parked.
	Suspended ThreadState = 0x0040
	// AbortRequested indicates Thread.Abort was called and not yet observed.
	AbortRequested ThreadState = 0x0080
	// Aborted indicates the thread observed the abort via SelfAborting.
	Aborted ThreadState = 0x0100

	// publicStates masks the flags visible via Thread.State.
	publicStates ThreadState = 0x01FF

	// interrupted marks a pending interrupt.
	interrupted ThreadState = 0x0400
)

var threadStateNames = [...]struct {
	flag ThreadState
	name string
}{
	{StopRequested, "StopRequested"},
	{SuspendRequested, "SuspendRequested"},
	{Background, "Background"},
	{Unstarted, "Unstarted"},
	{Stopped, "Stopped"},
	{WaitSleepJoin, "WaitSleepJoin"},
	{Suspended, "Suspended"},
	{AbortRequested, "AbortRequested"},
	{Aborted, "Aborted"},
}

// Has reports whether all flags in f are set.
func (s ThreadState) Has(f ThreadState) bool { return s&f == f }

// Any reports whether any flag in f is set.
func (s ThreadState) Any(f ThreadState) bool { return s&f != 0 }

// String renders the flags, e.g. "Suspended|WaitSleepJoin".
func (s ThreadState) String() string {
	s &= publicStates
	if s == Running {
		return "Running"
	}
	var b strings.Builder
	for _, v := range threadStateNames {
		if s&v.flag != 0 {
			if b.Len() != 0 {
				b.WriteByte('|')
			}
			b.WriteString(v.name)
		}
	}
	return b.String()
}

// SuspendResult is the outcome of Thread.SuspendRequest.
type SuspendResult int

const (
	// SuspendFailed indicates the thread is not in a suspendable state
	// (unstarted or stopped).
	SuspendFailed SuspendResult = 0
	// SuspendOK indicates the thread is suspended.
	SuspendOK SuspendResult = 1
	// SuspendPending indicates the suspend was requested but not yet
	// performed, e.g. the thread is in a wait, sleep or join, and will
	// suspend when it leaves that state.
	SuspendPending SuspendResult = 2
	// SuspendAborted indicates the thread has a pending abort request.
	SuspendAborted SuspendResult = 3
)

// String returns the name of the result.
func (r SuspendResult) String() string {
	switch r {
	case SuspendFailed:
		return "Failed"
	case SuspendOK:
		return "OK"
	case SuspendPending:
		return "Pending"
	case SuspendAborted:
		return "Aborted"
	default:
		return "SuspendResult(" + strconv.Itoa(int(r)) + ")"
	}
}
