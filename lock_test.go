package vmthread

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLock_negative(t *testing.T) {
	require.Panics(t, func() { NewLock(-1) })
}

func TestLock_TryWait(t *testing.T) {
	l := NewLock(1)
	require.NoError(t, l.TryWait())
	require.Equal(t, ErrBusy, l.TryWait())
	l.Signal()
	assert.Equal(t, int32(1), l.Value())
	require.NoError(t, l.TryWait())
	assert.Equal(t, int32(0), l.Value())
}

func TestLock_SignalCount(t *testing.T) {
	l := NewLock(0)
	assert.Equal(t, ErrInvalidReleaseCount, l.SignalCount(0))
	assert.Equal(t, ErrInvalidReleaseCount, l.SignalCount(math.MaxInt32+1))
	require.NoError(t, l.SignalCount(3))
	assert.Equal(t, int32(3), l.Value())
	assert.Equal(t, ErrInvalidReleaseCount, l.SignalCount(math.MaxInt32))
	assert.Equal(t, int32(3), l.Value())
}

func TestLock_Signal_overflow(t *testing.T) {
	l := NewLock(math.MaxInt32 - 1)
	require.NoError(t, l.Signal())
	assert.Equal(t, int32(math.MaxInt32), l.Value())
	assert.Equal(t, ErrInvalidReleaseCount, l.Signal())
	assert.Equal(t, int32(math.MaxInt32), l.Value())
	assert.Equal(t, ErrInvalidReleaseCount, l.SignalCount(1))

	require.NoError(t, l.TryWait())
	require.NoError(t, l.Signal())
	assert.Equal(t, int32(math.MaxInt32), l.Value())
}

func TestLock_signalWakesWaiter(t *testing.T) {
	rt := newTestRuntime(t)
	l := NewLock(0)

	var result error
	th := spawn(t, rt, func(th *Thread) {
		result = l.WaitInterruptible(th)
	})

	eventually(t, func() bool { return l.Waiters() == 1 })
	assert.Equal(t, int32(-1), l.Value())
	assert.Same(t, l, th.WaitingOn())

	l.Signal()
	join(t, th)

	require.NoError(t, result)
	assert.Equal(t, int32(0), l.Value())
	assert.Nil(t, th.WaitingOn())
}

func TestLock_fifo(t *testing.T) {
	rt := newTestRuntime(t)
	l := NewLock(0)
	order := make(chan int, 3)

	var threads []*Thread
	for i := range 3 {
		threads = append(threads, spawn(t, rt, func(th *Thread) {
			if l.WaitUninterruptible(th) == nil {
				order <- i
			}
		}))
		eventually(t, func() bool { return l.Waiters() == i+1 })
	}

	for i := range 3 {
		l.Signal()
		select {
		case v := <-order:
			assert.Equal(t, i, v)
		case <-time.After(5 * time.Second):
			t.Fatal(`waiter not released`)
		}
	}

	for _, th := range threads {
		join(t, th)
	}
}

func TestLock_TimedWaitInterruptible_timeout(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	l := NewLock(0)
	start := time.Now()
	require.Equal(t, ErrBusy, l.TimedWaitInterruptible(th, 50))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, int32(0), l.Value())
	assert.Equal(t, 0, l.Waiters())

	require.Equal(t, ErrBusy, l.TimedWaitInterruptible(th, 0))
	require.Equal(t, ErrInvalidTimeout, l.TimedWaitInterruptible(th, maxTimeout+1))
	require.Equal(t, ErrBusy, l.TimedWaitUninterruptible(th, 10))
}

func TestLock_interruptPending(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	l := NewLock(0)
	th.Interrupt()
	require.Equal(t, ErrInterrupted, l.WaitInterruptible(th))
	// consumed
	require.Equal(t, ErrBusy, l.TimedWaitInterruptible(th, 10))
}

func TestLock_permitWinsOverPendingInterrupt(t *testing.T) {
	rt := newTestRuntime(t)
	th, detach := attach(t, rt)
	defer detach()

	l := NewLock(1)
	th.Interrupt()
	require.NoError(t, l.WaitInterruptible(th))
	require.Equal(t, ErrInterrupted, l.TimedWaitInterruptible(th, 1000))
}

func TestLock_interruptWhileWaiting(t *testing.T) {
	rt := newTestRuntime(t)
	l := NewLock(0)

	var result error
	th := spawn(t, rt, func(th *Thread) {
		result = l.WaitInterruptible(th)
	})

	eventually(t, func() bool { return l.Waiters() == 1 })
	th.Interrupt()
	join(t, th)

	require.Equal(t, ErrInterrupted, result)
	assert.Equal(t, int32(0), l.Value())
	assert.Equal(t, 0, l.Waiters())
}

func TestLock_abortWhileWaiting(t *testing.T) {
	rt := newTestRuntime(t)
	l := NewLock(0)

	var first, second error
	th := spawn(t, rt, func(th *Thread) {
		first = l.WaitInterruptible(th)
		second = l.TimedWaitInterruptible(th, 1000)
	})

	eventually(t, func() bool { return l.Waiters() == 1 })
	require.True(t, th.Abort())
	join(t, th)

	require.Equal(t, ErrAborted, first)
	require.Equal(t, ErrAborted, second)
	assert.True(t, th.State().Has(AbortRequested))
	assert.Equal(t, int32(0), l.Value())
}

func TestLock_WaitUninterruptible_defersInterrupt(t *testing.T) {
	rt := newTestRuntime(t)
	l := NewLock(0)

	var first, second error
	th := spawn(t, rt, func(th *Thread) {
		first = l.WaitUninterruptible(th)
		second = l.TimedWaitInterruptible(th, 1000)
	})

	eventually(t, func() bool { return l.Waiters() == 1 })
	th.Interrupt()
	time.Sleep(step)
	require.Equal(t, 1, l.Waiters())

	l.Signal()
	join(t, th)

	require.NoError(t, first)
	require.Equal(t, ErrInterrupted, second)
}

func TestLock_Close(t *testing.T) {
	rt := newTestRuntime(t)
	l := NewLock(0)

	th := spawn(t, rt, func(th *Thread) {
		_ = l.WaitUninterruptible(th)
	})

	eventually(t, func() bool { return l.Waiters() == 1 })
	require.Equal(t, ErrSyncLock, l.Close())

	l.Signal()
	join(t, th)
	require.NoError(t, l.Close())
}

func TestLock_wakeWaiters_neverBanks(t *testing.T) {
	l := NewLock(0)
	assert.Equal(t, 0, l.wakeWaiters(-1))
	assert.Equal(t, int32(0), l.Value())
	require.Equal(t, ErrBusy, l.TryWait())
}

// Every signal is either consumed by exactly one successful wait, or banked,
// regardless of concurrent interrupts and timeouts.
func TestLock_stressSignalInterrupt(t *testing.T) {
	const (
		workers    = 8
		iterations = 200
		signals    = 1000
	)

	for seed := range uint64(4) {
		rt := newTestRuntime(t)
		l := NewLock(0)

		var successes atomic.Int64
		threads := make([]*Thread, workers)
		for i := range threads {
			rng := rand.New(rand.NewPCG(seed, uint64(i)))
			threads[i] = spawn(t, rt, func(th *Thread) {
				for range iterations {
					var err error
					switch rng.IntN(3) {
					case 0:
						err = l.TryWait()
					case 1:
						err = l.TimedWaitInterruptible(th, Timeout(rng.IntN(3)))
					default:
						err = l.TimedWaitUninterruptible(th, Timeout(rng.IntN(3)))
					}
					if err == nil {
						successes.Add(1)
					}
				}
			})
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, math.MaxUint32))
			for range signals {
				l.Signal()
				if rng.IntN(4) == 0 {
					time.Sleep(time.Microsecond * time.Duration(rng.IntN(50)))
				}
			}
		}()
		go func() {
			defer wg.Done()
			rng := rand.New(rand.NewPCG(seed, math.MaxUint64))
			for range signals {
				threads[rng.IntN(workers)].Interrupt()
				if rng.IntN(4) == 0 {
					time.Sleep(time.Microsecond * time.Duration(rng.IntN(50)))
				}
			}
		}()
		wg.Wait()

		for _, th := range threads {
			join(t, th)
		}

		require.Equal(t, 0, l.Waiters())
		require.GreaterOrEqual(t, l.Value(), int32(0))
		require.Equal(t, int64(signals), successes.Load()+int64(l.Value()), "seed %d", seed)
	}
}
