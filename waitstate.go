package vmthread

import (
	"time"
)

// enterWaitState marks the calling thread as WaitSleepJoin. Entry is a
// suspension point. If an abort is pending, the state is not entered, any
// pending interrupt is discarded, and ErrAborted is returned.
func (t *Thread) enterWaitState() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.safePointLocked()

	if t.state&AbortRequested != 0 {
		t.state &^= interrupted
		return ErrAborted
	}

	t.state |= WaitSleepJoin
	// pending suspenders stop waiting for a park
	t.cond.Broadcast()

	return nil
}

// leaveWaitState clears WaitSleepJoin, and returns the outcome of the wait.
// A pending abort takes priority over a pending interrupt, which is consumed.
// If acquired is true, the wait obtained a resource the caller now owns, and
// pending cancellation is left for the next wait instead.
//
// A suspend requested while waiting takes effect before returning.
func (t *Thread) leaveWaitState(err error, acquired bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state &^= WaitSleepJoin

	if !acquired {
		switch {
		case t.state&AbortRequested != 0:
			t.state &^= interrupted
			err = ErrAborted
		case t.state&interrupted != 0:
			t.state &^= interrupted
			err = ErrInterrupted
		}
	}

	t.safePointLocked()

	return err
}

// takeCancel reports a pending abort (without consuming it), or consumes a
// pending interrupt.
func (t *Thread) takeCancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.takeCancelLocked()
}

func (t *Thread) takeCancelLocked() error {
	switch {
	case t.state&AbortRequested != 0:
		t.state &^= interrupted
		return ErrAborted
	case t.state&interrupted != 0:
		t.state &^= interrupted
		return ErrInterrupted
	default:
		return nil
	}
}

// cancelPending reports a pending abort or interrupt, without consuming it.
func (t *Thread) cancelPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state&(AbortRequested|interrupted) != 0
}

// block waits for a nudge, or the timer. It returns true if the timer fired.
func (t *Thread) block(timerC <-chan time.Time) (timedOut bool) {
	select {
	case <-t.wake:
		return false
	case <-timerC:
		return true
	}
}

// Sleep blocks the calling thread, which must be the receiver, for the
// given timeout. A zero timeout yields the processor.
//
// Sleep returns nil once the timeout elapses, ErrInterrupted or ErrAborted if
// cancelled, ErrInvalidTimeout, or ErrNotSelf.
func (t *Thread) Sleep(ms Timeout) error {
	if !t.isSelf() {
		return ErrNotSelf
	}

	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}

	if err := t.enterWaitState(); err != nil {
		return err
	}

	if d.poll {
		Yield()
		return t.leaveWaitState(nil, false)
	}

	timerC, stop := d.timer()
	defer stop()

	for {
		if err = t.takeCancel(); err != nil {
			break
		}
		if t.block(timerC) {
			break
		}
	}

	return t.leaveWaitState(err, false)
}

// Join blocks until the receiver has stopped, or the timeout elapses.
//
// If the caller is a thread of the same runtime, the join is performed in
// the WaitSleepJoin state, and may be cancelled by Interrupt or Abort.
//
// Join returns nil once the thread has stopped, ErrBusy on timeout,
// ErrInterrupted, ErrAborted, ErrInvalidTimeout, ErrJoinSelf, or
// ErrThreadUnstarted.
func (t *Thread) Join(ms Timeout) error {
	d, err := deadlineOf(ms)
	if err != nil {
		return err
	}

	caller := t.rt.Current()
	if caller == t {
		return ErrJoinSelf
	}

	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	switch {
	case state&Stopped != 0:
		return nil
	case state&Unstarted != 0:
		return ErrThreadUnstarted
	case d.poll:
		select {
		case <-t.done:
			return nil
		default:
			return ErrBusy
		}
	}

	timerC, stop := d.timer()
	defer stop()

	if caller == nil {
		select {
		case <-t.done:
			return nil
		case <-timerC:
			return ErrBusy
		}
	}

	if err := caller.enterWaitState(); err != nil {
		return err
	}

Loop:
	for {
		if err = caller.takeCancel(); err != nil {
			break
		}
		select {
		case <-t.done:
			break Loop
		case <-caller.wake:
		case <-timerC:
			err = ErrBusy
			break Loop
		}
	}

	return caller.leaveWaitState(err, false)
}
