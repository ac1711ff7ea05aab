package runloop

import (
	"math"
	"time"
)

// Infinite is the wait timeout meaning "until a message arrives".
const Infinite time.Duration = math.MaxInt64

// Wake is an engine's answer to "when do you next need servicing".
// The zero value is Idle.
type Wake struct {
	delay time.Duration
	set   bool
}

// Idle reports that an engine has no further work scheduled.
var Idle = Wake{}

// After reports that an engine's next work is due in d.
// Negative durations are treated as due now.
func After(d time.Duration) Wake {
	if d < 0 {
		d = 0
	}
	return Wake{delay: d, set: true}
}

// Duration returns the delay until the next due work, and false when idle.
func (w Wake) Duration() (time.Duration, bool) {
	return w.delay, w.set
}

// IsIdle reports whether no work is scheduled.
func (w Wake) IsIdle() bool {
	return !w.set
}

func (w Wake) String() string {
	if !w.set {
		return "idle"
	}
	return w.delay.String()
}

// Engine is an embedded runtime that needs periodic servicing of its own
// scheduled work (timers, callbacks).
//
// ProcessMessages runs everything that is already due and returns when the
// engine next needs to run. It is called repeatedly and rapidly and must be
// a cheap no-op when nothing is due. It must not block.
type Engine interface {
	ProcessMessages() Wake
}

// Message is an opaque unit of work delivered by a MessageSource.
type Message any

// MessageSource is a native message queue.
//
// All methods are called from the loop goroutine only.
type MessageSource interface {
	// Wait blocks for up to timeout, returning early when a message may be
	// available. Infinite means no bound. Spurious early returns are allowed.
	Wait(timeout time.Duration) error

	// Peek removes and returns the next pending message without blocking.
	Peek() (Message, bool, error)

	// IsQuit reports whether msg is the quit signal.
	IsQuit(msg Message) bool

	// Dispatch translates and routes msg to its target.
	Dispatch(msg Message) error
}
