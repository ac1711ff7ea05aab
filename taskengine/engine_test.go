package taskengine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/clock"
	"github.com/wippyai/runloop/loop"
	"github.com/wippyai/runloop/msgqueue"
)

func newEngine(t *testing.T) (*Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(1_000, 0))
	return New(&Config{Clock: clk, Name: "test"}), clk
}

func TestIdleWhenEmpty(t *testing.T) {
	e, _ := newEngine(t)
	assert.True(t, e.ProcessMessages().IsIdle())
	assert.Equal(t, "test", e.Name())
}

func TestDefaultName(t *testing.T) {
	e := New(nil)
	assert.Equal(t, "task-"+e.ID().String()[:8], e.Name())
}

func TestRunsDueTasksInOrder(t *testing.T) {
	e, clk := newEngine(t)
	var order []string
	e.PostDelayed(func() { order = append(order, "late") }, 10*time.Millisecond)
	e.PostDelayed(func() { order = append(order, "soon") }, 5*time.Millisecond)
	e.Post(func() { order = append(order, "now") })

	w := e.ProcessMessages()
	assert.Equal(t, []string{"now"}, order)
	assert.Equal(t, runloop.After(5*time.Millisecond), w)

	clk.Advance(10 * time.Millisecond)
	assert.True(t, e.ProcessMessages().IsIdle())
	assert.Equal(t, []string{"now", "soon", "late"}, order)
	assert.Equal(t, uint64(3), e.Stats().Ran)
}

func TestNothingDueIsNoop(t *testing.T) {
	e, _ := newEngine(t)
	ran := false
	e.PostDelayed(func() { ran = true }, time.Second)

	for i := 0; i < 3; i++ {
		assert.Equal(t, runloop.After(time.Second), e.ProcessMessages())
	}
	assert.False(t, ran)
	assert.Equal(t, 1, e.Pending())
}

func TestPostedDuringProcessingRunsNextTick(t *testing.T) {
	e, _ := newEngine(t)
	count := 0
	var again func()
	again = func() {
		count++
		e.Post(again)
	}
	e.Post(again)

	w := e.ProcessMessages()
	assert.Equal(t, 1, count)
	assert.Equal(t, runloop.After(0), w)

	e.ProcessMessages()
	assert.Equal(t, 2, count)
}

func TestCancel(t *testing.T) {
	e, clk := newEngine(t)
	ran := false
	id := e.PostDelayed(func() { ran = true }, time.Millisecond)

	assert.True(t, e.Cancel(id))
	assert.False(t, e.Cancel(id))
	clk.Advance(time.Second)
	assert.True(t, e.ProcessMessages().IsIdle())
	assert.False(t, ran)
}

func TestCancelWithinBatch(t *testing.T) {
	e, _ := newEngine(t)
	ran := false
	var second TaskID
	e.Post(func() { e.Cancel(second) })
	second = e.Post(func() { ran = true })

	e.ProcessMessages()
	assert.False(t, ran)
}

func TestPanicIsContained(t *testing.T) {
	e, _ := newEngine(t)
	ran := false
	e.Post(func() { panic("boom") })
	e.Post(func() { ran = true })

	assert.NotPanics(t, func() { e.ProcessMessages() })
	assert.True(t, ran)
	assert.Equal(t, Stats{Ran: 1, Panicked: 1}, e.Stats())
}

func TestNegativeDelay(t *testing.T) {
	e, _ := newEngine(t)
	ran := false
	e.PostDelayed(func() { ran = true }, -time.Second)
	e.ProcessMessages()
	assert.True(t, ran)
}

func TestWakeupOnPost(t *testing.T) {
	var mu sync.Mutex
	wakes := 0
	e := New(&Config{Wakeup: func() {
		mu.Lock()
		wakes++
		mu.Unlock()
	}})

	e.Post(func() {})
	e.PostDelayed(func() {}, time.Hour)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, wakes)
}

func TestDrivenByLoop(t *testing.T) {
	q := msgqueue.New(nil)
	defer q.Close()
	q.Router().HandleFunc("wake", func(*msgqueue.Message) error { return nil })

	e := New(&Config{Wakeup: func() { _ = q.Post("wake", nil) }})
	l := loop.New(q)
	l.RegisterEngine(e)
	defer l.UnregisterEngine(e)

	var fired []int
	e.PostDelayed(func() { fired = append(fired, 2) }, 20*time.Millisecond)
	e.PostDelayed(func() { fired = append(fired, 1) }, 5*time.Millisecond)
	e.PostDelayed(func() { _ = q.PostQuit(0) }, 100*time.Millisecond)

	// A post from another goroutine must wake the loop while it waits.
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Post(func() { fired = append(fired, 3) })
	}()

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not quit")
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, fired)
	assert.Equal(t, 1, fired[0])
}
