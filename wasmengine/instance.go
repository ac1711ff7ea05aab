package wasmengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/clock"
	"github.com/wippyai/runloop/errors"
	"github.com/wippyai/runloop/timers"
)

var _ runloop.Engine = (*Instance)(nil)

// Instance is a running guest serviced by the loop. It is NOT thread-safe:
// ProcessMessages, Call and Close must run on the loop goroutine.
type Instance struct {
	ctx     context.Context
	runtime *Runtime
	clock   clock.Clock
	log     *zap.Logger
	mod     api.Module
	onTimer api.Function
	timers  *timers.Queue
	err     error
	started time.Time
	name    string
	fired   uint64
	id      uuid.UUID
	closed  bool

	// touched holds ids armed or cleared by the guest while a due batch is
	// being delivered; their popped entries are stale. Nil outside a batch.
	touched map[uint64]struct{}
}

func (i *Instance) Name() string {
	return i.name
}

func (i *Instance) ID() uuid.UUID {
	return i.id
}

// Fired returns the number of timers delivered to the guest.
func (i *Instance) Fired() uint64 {
	return i.fired
}

// PendingTimers returns the number of armed timers.
func (i *Instance) PendingTimers() int {
	return i.timers.Len()
}

// Err returns the trap that stopped the instance, if any.
func (i *Instance) Err() error {
	return i.err
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.mod
}

// ProcessMessages delivers every timer due on entry to the guest's
// on_timer export and reports when the next armed timer is due. A trap
// stops the instance: it is logged, recorded in Err, and the instance
// reports Idle from then on.
func (i *Instance) ProcessMessages() runloop.Wake {
	if i.closed || i.err != nil {
		return runloop.Idle
	}

	due := i.timers.PopDue(i.clock.Now())
	if len(due) == 0 {
		return i.timers.Wake(i.clock.Now())
	}

	i.touched = make(map[uint64]struct{})
	defer func() { i.touched = nil }()
	for _, entry := range due {
		if _, stale := i.touched[entry.ID]; stale {
			continue
		}
		if _, err := i.onTimer.Call(i.ctx, uint64(uint32(entry.ID))); err != nil {
			i.fail(errors.Trap(ExportOnTimer, err))
			return runloop.Idle
		}
		i.fired++
	}
	return i.timers.Wake(i.clock.Now())
}

// Call invokes a guest export with raw core values.
func (i *Instance) Call(name string, params ...uint64) ([]uint64, error) {
	if i.closed {
		return nil, errors.Closed(errors.PhaseRuntime, "instance")
	}
	if i.err != nil {
		return nil, i.err
	}
	fn := i.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	results, err := fn.Call(i.ctx, params...)
	if err != nil {
		trap := errors.Trap(name, err)
		i.fail(trap)
		return nil, trap
	}
	return results, nil
}

// Close releases the guest module. Unregister the instance from the loop
// first.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.runtime.untrack(i)
	if i.mod == nil {
		return nil
	}
	return i.mod.Close(ctx)
}

func (i *Instance) fail(err error) {
	i.err = err
	i.log.Error("guest trapped", zap.Error(err))
}

func (i *Instance) setTimer(id uint32, delay time.Duration) {
	i.touch(id)
	i.timers.Schedule(uint64(id), i.clock.Now().Add(delay))
	debugTimer(i.log, "timer armed", id, delay)
}

func (i *Instance) clearTimer(id uint32) {
	i.touch(id)
	if i.timers.Cancel(uint64(id)) {
		debugTimer(i.log, "timer cleared", id, 0)
	}
}

func (i *Instance) touch(id uint32) {
	if i.touched != nil {
		i.touched[uint64(id)] = struct{}{}
	}
}

func (i *Instance) sinceStart() time.Duration {
	return i.clock.Now().Sub(i.started)
}
