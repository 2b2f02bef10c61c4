package vmthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThread_Sleep_interrupted(t *testing.T) {
	rt := newTestRuntime(t)

	var result error
	th := spawn(t, rt, func(th *Thread) {
		result = th.Sleep(Infinite)
	})

	eventually(t, hasState(th, WaitSleepJoin))
	th.Interrupt()
	join(t, th)

	require.Equal(t, ErrInterrupted, result)
	assert.False(t, th.State().Has(WaitSleepJoin))
}

func TestThread_Sleep_interruptPending(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	th.Interrupt()
	start := time.Now()
	require.Equal(t, ErrInterrupted, th.Sleep(10*stepMs))
	assert.Less(t, time.Since(start), 5*step)

	require.NoError(t, th.Sleep(1))
	require.NoError(t, th.Sleep(0))
}

func TestThread_Sleep_validation(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	require.Equal(t, ErrInvalidTimeout, th.Sleep(maxTimeout+1))

	other, err := rt.NewThread(func(th *Thread) {})
	require.NoError(t, err)
	require.Equal(t, ErrNotSelf, other.Sleep(1))
}

func TestThread_Abort_duringSleep(t *testing.T) {
	rt := newTestRuntime(t)

	var (
		result      error
		first       bool
		second      bool
		reset       bool
		afterReset  error
		stateAfter  ThreadState
		stateBefore ThreadState
	)
	th := spawn(t, rt, func(th *Thread) {
		result = th.Sleep(Infinite)
		first = th.SelfAborting()
		second = th.SelfAborting()
		stateBefore = th.State()
		reset = th.AbortReset()
		stateAfter = th.State()
		afterReset = th.Sleep(1)
	})

	eventually(t, hasState(th, WaitSleepJoin))
	require.True(t, th.Abort())
	require.False(t, th.Abort())
	join(t, th)

	require.Equal(t, ErrAborted, result)
	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, stateBefore.Has(Aborted))
	assert.False(t, stateBefore.Has(AbortRequested))
	assert.True(t, reset)
	assert.False(t, stateAfter.Any(Aborted|AbortRequested))
	require.NoError(t, afterReset)

	assert.False(t, th.Abort())
}

func TestThread_Abort_priorityOverInterrupt(t *testing.T) {
	rt := newTestRuntime(t)

	ready := make(chan struct{})
	var first, second error
	th := spawn(t, rt, func(th *Thread) {
		<-ready
		first = th.Sleep(Infinite)
		th.SelfAborting()
		second = th.Sleep(1)
	})

	th.Interrupt()
	require.True(t, th.Abort())
	close(ready)
	join(t, th)

	require.Equal(t, ErrAborted, first)
	require.NoError(t, second)
}

func TestThread_Interrupt_unstarted(t *testing.T) {
	rt := newTestRuntime(t)

	var result error
	th, err := rt.NewThread(func(th *Thread) {
		result = th.Sleep(1)
	})
	require.NoError(t, err)

	th.Interrupt()
	require.NoError(t, th.Start())
	join(t, th)
	require.NoError(t, result)

	// no effect once stopped
	th.Interrupt()
	assert.Equal(t, Stopped, th.State())
}

func TestThread_Join(t *testing.T) {
	rt := newTestRuntime(t)
	caller, detach := attach(t, rt)
	defer detach()

	unstarted, err := rt.NewThread(func(th *Thread) {})
	require.NoError(t, err)
	require.Equal(t, ErrThreadUnstarted, unstarted.Join(Infinite))

	release := make(chan struct{})
	th := spawn(t, rt, func(th *Thread) { <-release })

	require.Equal(t, ErrBusy, th.Join(0))
	require.Equal(t, ErrBusy, th.Join(10))
	require.Equal(t, ErrJoinSelf, caller.Join(Infinite))
	require.Equal(t, ErrInvalidTimeout, th.Join(maxTimeout+1))

	close(release)
	require.NoError(t, th.Join(Infinite))
	require.NoError(t, th.Join(0))
	assert.False(t, caller.State().Has(WaitSleepJoin))
}

func TestThread_Join_interrupted(t *testing.T) {
	rt := newTestRuntime(t)

	release := make(chan struct{})
	target := spawn(t, rt, func(th *Thread) { <-release })

	var result error
	joiner := spawn(t, rt, func(th *Thread) {
		result = target.Join(Infinite)
	})

	eventually(t, hasState(joiner, WaitSleepJoin))
	joiner.Interrupt()
	join(t, joiner)
	require.Equal(t, ErrInterrupted, result)

	close(release)
	join(t, target)
}

func TestThread_Join_unregisteredCaller(t *testing.T) {
	rt := newTestRuntime(t)

	th := spawn(t, rt, func(th *Thread) {
		_ = th.Sleep(stepMs / 2)
	})

	require.Equal(t, ErrBusy, th.Join(1))
	require.NoError(t, th.Join(Infinite))
}
