package msgqueue

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/runloop"
)

func wakers(t *testing.T) map[string]Waker {
	t.Helper()
	out := map[string]Waker{"chan": NewChanWaker()}
	if runtime.GOOS == "linux" {
		w, err := NewEventfdWaker()
		require.NoError(t, err)
		out["eventfd"] = w
	}
	return out
}

func TestWakerSignalBeforeWait(t *testing.T) {
	for name, w := range wakers(t) {
		t.Run(name, func(t *testing.T) {
			defer w.Close()

			require.NoError(t, w.Signal())
			require.NoError(t, w.Signal())

			start := time.Now()
			require.NoError(t, w.Wait(time.Second))
			assert.Less(t, time.Since(start), 500*time.Millisecond)

			// Signals coalesce: the second Wait times out.
			start = time.Now()
			require.NoError(t, w.Wait(20*time.Millisecond))
			assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
		})
	}
}

func TestWakerZeroTimeout(t *testing.T) {
	for name, w := range wakers(t) {
		t.Run(name, func(t *testing.T) {
			defer w.Close()
			require.NoError(t, w.Wait(0))
		})
	}
}

func TestWakerCloseReleasesWait(t *testing.T) {
	for name, w := range wakers(t) {
		t.Run(name, func(t *testing.T) {
			done := make(chan struct{})
			go func() {
				_ = w.Wait(runloop.Infinite)
				close(done)
			}()

			time.Sleep(10 * time.Millisecond)
			require.NoError(t, w.Close())

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("Close did not release Wait")
			}
			assert.Error(t, w.Wait(0))
		})
	}
}
