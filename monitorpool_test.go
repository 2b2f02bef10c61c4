package vmthread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObject struct {
	MonitorSlot
	value int
}

func TestMonitorPool_attachDetach(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	pool := rt.Monitors()
	var obj testObject

	require.Nil(t, obj.Monitor(pool, th))
	require.NoError(t, pool.Enter(th, &obj.MonitorSlot))
	m := obj.Monitor(pool, th)
	require.NotNil(t, m)
	assert.Same(t, th, m.Owner())

	require.NoError(t, pool.TryEnter(th, &obj.MonitorSlot))
	require.NoError(t, pool.TimedTryEnter(th, &obj.MonitorSlot, 10))
	assert.Equal(t, 3, m.Count())
	assert.Equal(t, MonitorPoolStats{Attached: 1, Allocated: 1}, pool.Stats(th))

	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	assert.Same(t, m, obj.Monitor(pool, th))
	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	assert.Nil(t, obj.Monitor(pool, th))
	assert.Equal(t, MonitorPoolStats{Allocated: 1}, pool.Stats(th))

	// recycled from the thread's free list
	require.NoError(t, pool.Enter(th, &obj.MonitorSlot))
	assert.Same(t, m, obj.Monitor(pool, th))
	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	assert.Equal(t, 1, pool.Stats(th).Allocated)
}

func TestMonitorPool_emptySlot(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	pool := rt.Monitors()
	var obj testObject

	require.Equal(t, ErrSyncLock, pool.Exit(th, &obj.MonitorSlot))
	require.Equal(t, ErrSyncLock, pool.Wait(th, &obj.MonitorSlot, 0))
	require.Equal(t, ErrSyncLock, pool.Pulse(th, &obj.MonitorSlot))
	require.Equal(t, ErrSyncLock, pool.PulseAll(th, &obj.MonitorSlot))
	require.Equal(t, ErrInvalidTimeout, pool.TimedTryEnter(th, &obj.MonitorSlot, maxTimeout+1))
	assert.True(t, pool.Reclaim(th, &obj.MonitorSlot))
}

func TestMonitorPool_contended(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	pool := rt.Monitors()
	var obj testObject
	require.NoError(t, pool.Enter(th, &obj.MonitorSlot))

	var try error
	other := spawn(t, rt, func(th *Thread) {
		try = pool.TryEnter(th, &obj.MonitorSlot)
		assert.Equal(t, ErrSyncLock, pool.Exit(th, &obj.MonitorSlot))
		assert.NoError(t, pool.Enter(th, &obj.MonitorSlot))
		obj.value++
		assert.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	})

	eventually(t, hasState(other, WaitSleepJoin))
	require.Equal(t, 1, pool.Stats(th).Attached)
	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	join(t, other)

	require.Equal(t, ErrBusy, try)
	assert.Equal(t, 1, obj.value)
	assert.Nil(t, obj.Monitor(pool, th))
	assert.Equal(t, 0, pool.Stats(th).Attached)
}

func TestMonitorPool_WaitPulse(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	pool := rt.Monitors()
	var obj testObject

	var result error
	waiter := spawn(t, rt, func(th *Thread) {
		assert.NoError(t, pool.Enter(th, &obj.MonitorSlot))
		result = pool.Wait(th, &obj.MonitorSlot, Infinite)
		assert.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	})

	eventually(t, func() bool {
		m := obj.Monitor(pool, th)
		return m != nil && m.Waiters() == 1
	})
	require.NoError(t, pool.Enter(th, &obj.MonitorSlot))
	require.NoError(t, pool.Pulse(th, &obj.MonitorSlot))
	require.NoError(t, pool.PulseAll(th, &obj.MonitorSlot))
	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
	join(t, waiter)

	require.NoError(t, result)
	assert.Nil(t, obj.Monitor(pool, th))
}

func TestMonitorPool_freeListOverflow(t *testing.T) {
	rt := newTestRuntime(t, WithMonitorFreeList(1, 2))
	th, detach := attach(t, rt)
	defer detach()

	pool := rt.Monitors()
	objects := make([]testObject, 4)

	worker := spawn(t, rt, func(th *Thread) {
		for i := range objects {
			assert.NoError(t, pool.Enter(th, &objects[i].MonitorSlot))
		}
		for i := range objects {
			assert.NoError(t, pool.Exit(th, &objects[i].MonitorSlot))
		}
		// 3 detached, then trimmed back to 1, then the 4th
		assert.Len(t, th.freeMonitors, 2)
		assert.Equal(t, MonitorPoolStats{Free: 2, Allocated: 4}, pool.Stats(th))
	})
	join(t, worker)

	// the exiting thread released its free list
	assert.Equal(t, MonitorPoolStats{Free: 4, Allocated: 4}, pool.Stats(th))

	require.NoError(t, pool.Enter(th, &objects[0].MonitorSlot))
	require.NoError(t, pool.Exit(th, &objects[0].MonitorSlot))
	assert.Equal(t, MonitorPoolStats{Free: 3, Allocated: 4}, pool.Stats(th))
}

func TestMonitorPool_Reclaim_abandoned(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	pool := rt.Monitors()
	var obj testObject

	release := make(chan struct{})
	owner := spawn(t, rt, func(th *Thread) {
		assert.NoError(t, pool.Enter(th, &obj.MonitorSlot))
		<-release
	})
	eventually(t, func() bool { return obj.Monitor(pool, th) != nil })

	// the owner is still running
	require.False(t, pool.Reclaim(th, &obj.MonitorSlot))

	close(release)
	join(t, owner)

	m := obj.Monitor(pool, th)
	require.NotNil(t, m)
	require.True(t, pool.Reclaim(th, &obj.MonitorSlot))
	assert.Nil(t, obj.Monitor(pool, th))
	assert.Equal(t, MonitorPoolStats{Free: 1, Allocated: 1}, pool.Stats(th))
	assert.Nil(t, m.Owner())
	require.NoError(t, m.Close())

	// recycled, and usable
	require.NoError(t, pool.TryEnter(th, &obj.MonitorSlot))
	assert.Same(t, m, obj.Monitor(pool, th))
	require.NoError(t, pool.Exit(th, &obj.MonitorSlot))
}
