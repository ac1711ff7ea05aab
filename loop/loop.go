package loop

import (
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/clock"
	"github.com/wippyai/runloop/errors"
)

var (
	// ErrRunning is returned when Run is called on a loop that is already running.
	ErrRunning = stderrors.New("loop: already running")

	// ErrStopped is returned when Run is called on a loop that has stopped.
	ErrStopped = stderrors.New("loop: stopped")
)

// State is the lifecycle state of a Loop.
type State int32

const (
	StateIdle    State = iota // constructed, Run not called yet
	StateRunning              // inside Run
	StateStopped              // quit observed or the message source failed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config holds optional loop settings. Nil fields use defaults.
type Config struct {
	Clock  clock.Clock
	Logger *zap.Logger
}

// Stats counts loop activity since construction.
type Stats struct {
	Iterations uint64 // completed waits
	Dispatched uint64 // messages dispatched, quit excluded
	Ticks      uint64 // engine ticks, each covering every registered engine
}

// Loop services a MessageSource and a set of engines from the goroutine
// that calls Run.
//
// Loop is not safe for concurrent use. RegisterEngine and UnregisterEngine
// must be called from the loop goroutine (typically from a message handler
// or an engine callback) or serialized by the caller while Run is active.
type Loop struct {
	source   runloop.MessageSource
	clock    clock.Clock
	log      *zap.Logger
	registry *Registry
	stats    Stats
	state    State
}

// New creates a loop over src using the system clock.
func New(src runloop.MessageSource) *Loop {
	return NewWithConfig(src, nil)
}

// NewWithConfig creates a loop over src with custom configuration.
func NewWithConfig(src runloop.MessageSource, cfg *Config) *Loop {
	l := &Loop{
		source:   src,
		clock:    clock.System(),
		log:      Logger(),
		registry: NewRegistry(),
	}
	if cfg != nil {
		if cfg.Clock != nil {
			l.clock = cfg.Clock
		}
		if cfg.Logger != nil {
			l.log = cfg.Logger
		}
	}
	return l
}

// RegisterEngine adds e to the set of serviced engines. Registering an
// engine twice is a no-op. The loop does not take ownership of e.
func (l *Loop) RegisterEngine(e runloop.Engine) {
	l.registry.Add(e)
}

// UnregisterEngine removes e. Unregistering an unknown engine is a no-op.
// Call it before destroying the engine.
func (l *Loop) UnregisterEngine(e runloop.Engine) {
	l.registry.Remove(e)
}

// Engines returns the registered engines in unspecified order.
func (l *Loop) Engines() []runloop.Engine {
	return l.registry.Snapshot()
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) Stats() Stats {
	return l.stats
}

// Run blocks until the message source delivers its quit message, and
// returns nil. Failures of the message source are not retried: Run stops
// and returns them.
func (l *Loop) Run() error {
	switch l.state {
	case StateRunning:
		return errors.State(errors.PhaseEngine, ErrRunning, "Run called from inside Run")
	case StateStopped:
		return errors.State(errors.PhaseEngine, ErrStopped, "loops cannot be restarted")
	}
	if l.source == nil {
		return errors.InvalidInput(errors.PhaseWait, "loop has no message source")
	}
	l.state = StateRunning
	l.log.Info("run loop started", zap.Int("engines", l.registry.Len()))

	// Engines are due immediately on startup.
	next := at(l.clock.Now())
	for {
		wait := waitDuration(next, l.clock.Now())
		if err := l.source.Wait(wait); err != nil {
			return l.fail(errors.AsPump(errors.PhaseWait, "wait", err))
		}
		l.stats.Iterations++

		// Every iteration ticks at least once, so the next deadline is
		// rebuilt from this iteration's ticks alone.
		next = never
		drained := 0
		for {
			msg, ok, err := l.source.Peek()
			if err != nil {
				return l.fail(errors.AsPump(errors.PhasePoll, "peek", err))
			}
			if !ok {
				break
			}
			drained++
			if l.source.IsQuit(msg) {
				l.state = StateStopped
				l.log.Info("run loop stopped", zap.Uint64("iterations", l.stats.Iterations))
				return nil
			}
			if err := l.source.Dispatch(msg); err != nil {
				return l.fail(errors.AsPump(errors.PhaseDispatch, "dispatch", err))
			}
			l.stats.Dispatched++

			// Tick after every message so a burst cannot starve engines.
			next = next.min(l.tick())
		}
		if drained == 0 {
			next = next.min(l.tick())
		}

		if ce := l.log.Check(zap.DebugLevel, "loop iteration"); ce != nil {
			ce.Write(
				zap.Duration("waited", wait),
				zap.Int("drained", drained),
				zap.Stringer("next", next),
			)
		}
	}
}

// ProcessEngines ticks every registered engine once and returns the
// earliest time any of them needs servicing again. It returns false when no
// engine has work scheduled.
//
// Run calls this itself; it is exported for hosts that pump messages with a
// loop of their own.
func (l *Loop) ProcessEngines() (time.Time, bool) {
	d := l.tick()
	return d.at, d.set
}

func (l *Loop) tick() deadline {
	l.stats.Ticks++
	next := never
	l.registry.Each(func(e runloop.Engine) {
		delay, ok := e.ProcessMessages().Duration()
		if !ok {
			return
		}
		if delay < 0 {
			delay = 0
		}
		next = next.min(at(l.clock.Now().Add(delay)))
	})
	return next
}

func (l *Loop) fail(err error) error {
	l.state = StateStopped
	l.log.Error("run loop failed", zap.Error(err))
	return err
}

// waitDuration converts a deadline into a wait timeout. Past deadlines
// yield zero and finite waits are truncated to whole microseconds.
func waitDuration(next deadline, now time.Time) time.Duration {
	if !next.set {
		return runloop.Infinite
	}
	d := next.at.Sub(now)
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Microsecond)
}

// deadline is a point in monotonic time; the zero value is infinitely far
// in the future.
type deadline struct {
	at  time.Time
	set bool
}

var never = deadline{}

func at(t time.Time) deadline {
	return deadline{at: t, set: true}
}

func (d deadline) min(o deadline) deadline {
	if !d.set {
		return o
	}
	if !o.set {
		return d
	}
	if o.at.Before(d.at) {
		return o
	}
	return d
}

func (d deadline) String() string {
	if !d.set {
		return "never"
	}
	return d.at.Format(time.RFC3339Nano)
}
