package vmthread

import (
	"math"
	"time"
)

// Timeout is a wait limit in milliseconds.
//
// A value of 0 polls, and Infinite blocks without limit. Any other value
// greater than math.MaxInt32 is rejected with ErrInvalidTimeout.
type Timeout uint32

// Infinite disables the timeout.
const Infinite Timeout = math.MaxUint32

// maxTimeout is the largest finite Timeout.
const maxTimeout Timeout = math.MaxInt32

// Millis converts d to a Timeout, rounding up to the next millisecond. A
// negative d is Infinite, and a d exceeding the finite range saturates to
// the largest finite Timeout.
func Millis(d time.Duration) Timeout {
	if d < 0 {
		return Infinite
	}
	if d > maxTimeout.Duration() {
		return maxTimeout
	}
	return Timeout((d + time.Millisecond - 1) / time.Millisecond)
}

// Valid reports whether the timeout is accepted by the blocking primitives.
func (x Timeout) Valid() bool { return x == Infinite || x <= maxTimeout }

// Duration returns the timeout as a time.Duration, or -1 if Infinite.
func (x Timeout) Duration() time.Duration {
	if x == Infinite {
		return -1
	}
	return time.Duration(x) * time.Millisecond
}

// deadline models an absolute wait limit, computed once at call entry.
type deadline struct {
	at       time.Time
	infinite bool
	poll     bool
}

// deadlineOf computes the absolute deadline for x, relative to now.
func deadlineOf(x Timeout) (deadline, error) {
	switch {
	case x == Infinite:
		return deadline{infinite: true}, nil
	case x > maxTimeout:
		return deadline{}, ErrInvalidTimeout
	case x == 0:
		return deadline{poll: true}, nil
	default:
		return deadline{at: timeNow().Add(x.Duration())}, nil
	}
}

// timer returns a channel that fires at the deadline, or nil if infinite.
// The returned stop function must always be called.
func (x deadline) timer() (<-chan time.Time, func()) {
	if x.infinite {
		return nil, func() {}
	}
	t := time.NewTimer(max(x.at.Sub(timeNow()), 0))
	return t.C, func() { t.Stop() }
}

// remaining converts the time left before the deadline back into a Timeout.
func (x deadline) remaining() Timeout {
	switch {
	case x.infinite:
		return Infinite
	case x.poll:
		return 0
	default:
		return Millis(max(x.at.Sub(timeNow()), 0))
	}
}

// used for testing
var timeNow = time.Now
