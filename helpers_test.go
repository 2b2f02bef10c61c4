package vmthread

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/require"
)

// step is the unit of time for scenario tests.
const step = 100 * time.Millisecond

// stepMs is step as a Timeout.
const stepMs = Timeout(step / time.Millisecond)

func newTestRuntime(t *testing.T, opts ...RuntimeOption) *Runtime {
	t.Helper()
	rt, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, rt.Shutdown(ctx))
	})
	return rt
}

// spawn starts a new thread running fn.
func spawn(t *testing.T, rt *Runtime, fn func(th *Thread), opts ...ThreadOption) *Thread {
	t.Helper()
	th, err := rt.NewThread(fn, opts...)
	require.NoError(t, err)
	require.NoError(t, th.Start())
	return th
}

// attach registers the test goroutine, and must be paired with a deferred
// detach, on the same goroutine.
func attach(t *testing.T, rt *Runtime) (*Thread, func()) {
	t.Helper()
	th, err := rt.Attach(WithName(`main`))
	require.NoError(t, err)
	return th, func() { require.NoError(t, th.Detach()) }
}

func join(t *testing.T, th *Thread) {
	t.Helper()
	select {
	case <-th.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s to stop, state %s", th, th.State())
	}
}

func eventually(t *testing.T, cond func() bool, msgAndArgs ...any) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, time.Millisecond, msgAndArgs...)
}

func hasState(th *Thread, f ThreadState) func() bool {
	return func() bool { return th.State().Has(f) }
}

// syncBuffer is a bytes.Buffer safe for concurrent writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (x *syncBuffer) Write(p []byte) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.Write(p)
}

func (x *syncBuffer) String() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.buf.String()
}

func newTestLogger(w *syncBuffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelTrace),
	).Logger()
}
