package vmthread

import (
	"math"
)

// CountSemaphore is a counting semaphore. Waiting is uninterruptible: a
// pending interrupt or abort is left for the next interruptible wait.
//
// Instances must be created using NewCountSemaphore.
type CountSemaphore struct {
	lock *Lock
}

// NewCountSemaphore creates a new CountSemaphore, with no permits.
func NewCountSemaphore() *CountSemaphore {
	return &CountSemaphore{lock: NewLock(0)}
}

// Close fails with ErrSyncLock if any thread is waiting.
func (s *CountSemaphore) Close() error { return s.lock.Close() }

// Wait blocks until a permit is taken.
func (s *CountSemaphore) Wait(t *Thread) error { return s.lock.WaitUninterruptible(t) }

// TimedWait blocks until a permit is taken, failing with ErrBusy if the
// timeout elapses first.
func (s *CountSemaphore) TimedWait(t *Thread, ms Timeout) error {
	return s.lock.TimedWaitUninterruptible(t, ms)
}

// TryWait takes a permit if one is available, failing with ErrBusy
// otherwise.
func (s *CountSemaphore) TryWait() error { return s.lock.TryWait() }

// Signal releases one permit, see Lock.Signal.
func (s *CountSemaphore) Signal() error { return s.lock.Signal() }

// SignalCount releases n permits, see Lock.SignalCount.
func (s *CountSemaphore) SignalCount(n uint32) error { return s.lock.SignalCount(n) }

// SignalAll releases every thread waiting at the time of the call, without
// banking permits for future waiters. It returns the number released.
func (s *CountSemaphore) SignalAll() int { return s.lock.wakeWaiters(math.MaxInt32) }

// Waiting returns the number of waiting threads.
func (s *CountSemaphore) Waiting() int { return s.lock.Waiters() }

// Permits returns the number of banked permits.
func (s *CountSemaphore) Permits() int {
	return int(max(s.lock.Value(), 0))
}
