// Package taskengine is a Go-native engine for the run loop: callers post
// closures to run now or after a delay, and the loop runs them as they come
// due.
package taskengine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/clock"
	"github.com/wippyai/runloop/timers"
)

var _ runloop.Engine = (*Engine)(nil)

// TaskID identifies a posted task.
type TaskID uint64

// Config holds optional engine settings. Nil fields use defaults.
type Config struct {
	Clock  clock.Clock
	Logger *zap.Logger

	// Wakeup is called after every post so a loop blocked on messages
	// notices new work, typically by posting a message to its queue.
	Wakeup func()

	Name string
}

// Stats counts engine activity.
type Stats struct {
	Ran      uint64
	Panicked uint64
}

// Engine runs posted tasks when ProcessMessages is called. Posting and
// cancelling are safe from any goroutine; ProcessMessages belongs to the
// loop goroutine.
type Engine struct {
	clock  clock.Clock
	log    *zap.Logger
	wakeup func()
	name   string
	id     uuid.UUID

	mu     sync.Mutex
	timers *timers.Queue
	tasks  map[uint64]func()
	nextID uint64
	stats  Stats
}

func New(cfg *Config) *Engine {
	e := &Engine{
		clock:  clock.System(),
		log:    Logger(),
		id:     uuid.New(),
		timers: timers.New(),
		tasks:  make(map[uint64]func()),
	}
	if cfg != nil {
		if cfg.Clock != nil {
			e.clock = cfg.Clock
		}
		if cfg.Logger != nil {
			e.log = cfg.Logger
		}
		e.wakeup = cfg.Wakeup
		e.name = cfg.Name
	}
	if e.name == "" {
		e.name = "task-" + e.id.String()[:8]
	}
	e.log = e.log.With(zap.String("engine", e.name))
	return e
}

func (e *Engine) ID() uuid.UUID {
	return e.id
}

func (e *Engine) Name() string {
	return e.name
}

// Post schedules fn to run on the next tick.
func (e *Engine) Post(fn func()) TaskID {
	return e.PostAt(fn, e.clock.Now())
}

// PostDelayed schedules fn to run once d has elapsed.
func (e *Engine) PostDelayed(fn func(), d time.Duration) TaskID {
	if d < 0 {
		d = 0
	}
	return e.PostAt(fn, e.clock.Now().Add(d))
}

// PostAt schedules fn to run at or after t.
func (e *Engine) PostAt(fn func(), t time.Time) TaskID {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.tasks[id] = fn
	e.timers.Schedule(id, t)
	e.mu.Unlock()

	if e.wakeup != nil {
		e.wakeup()
	}
	return TaskID(id)
}

// Cancel removes a task that has not run yet and reports whether it was
// pending.
func (e *Engine) Cancel(id TaskID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tasks[uint64(id)]; !ok {
		return false
	}
	delete(e.tasks, uint64(id))
	e.timers.Cancel(uint64(id))
	return true
}

// Pending returns the number of tasks waiting to run.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tasks)
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// ProcessMessages runs every task that was due on entry, in deadline order.
// Tasks posted while processing run on a later tick. A panicking task is
// logged and does not stop the others.
func (e *Engine) ProcessMessages() runloop.Wake {
	e.mu.Lock()
	due := e.timers.PopDue(e.clock.Now())
	e.mu.Unlock()

	for _, entry := range due {
		e.mu.Lock()
		fn, ok := e.tasks[entry.ID]
		delete(e.tasks, entry.ID)
		e.mu.Unlock()

		// Cancelled by an earlier task in this batch.
		if !ok {
			continue
		}
		e.run(TaskID(entry.ID), fn)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timers.Wake(e.clock.Now())
}

func (e *Engine) run(id TaskID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			e.stats.Panicked++
			e.mu.Unlock()
			e.log.Error("task panicked",
				zap.Uint64("task", uint64(id)),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()
	fn()
	e.mu.Lock()
	e.stats.Ran++
	e.mu.Unlock()
}
