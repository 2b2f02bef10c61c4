package vmthread

// Interrupt requests that the thread's current or next interruptible wait
// return ErrInterrupted. The request is sticky, and consumed exactly once.
// Interrupting an unstarted or stopped thread has no effect.
func (t *Thread) Interrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state&(Unstarted|Stopped) != 0 {
		return
	}
	t.state |= interrupted
	t.poke()
}

// Abort requests that the thread abort. Interruptible waits return
// ErrAborted for as long as the request is pending, and a suspended thread
// is resumed. It reports whether a new request was recorded, i.e. false if
// the thread is already aborting, aborted, or stopped.
//
// The thread observes the request via SelfAborting, or any blocking call.
func (t *Thread) Abort() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state&(AbortRequested|Aborted|Stopped) != 0 {
		return false
	}

	t.state |= AbortRequested

	if t.state&Suspended != 0 {
		t.state &^= Suspended | SuspendRequested
		t.cond.Broadcast()
	} else if t.state&SuspendRequested != 0 {
		t.state &^= SuspendRequested
		t.cond.Broadcast()
	}

	t.poke()

	t.logger.Debug().Log(`thread abort requested`)

	return true
}

// SelfAborting reports whether an abort was requested, in which case the
// thread transitions from AbortRequested to Aborted. It returns true at most
// once per request. Returns false unless called by the thread itself.
func (t *Thread) SelfAborting() bool {
	if !t.isSelf() {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state&AbortRequested == 0 {
		return false
	}
	t.state &^= AbortRequested
	t.state |= Aborted
	return true
}

// AbortReset cancels a requested or observed abort, and discards any pending
// interrupt. It reports whether there was an abort to cancel.
func (t *Thread) AbortReset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	aborting := t.state&(AbortRequested|Aborted) != 0
	t.state &^= AbortRequested | Aborted | interrupted
	return aborting
}
