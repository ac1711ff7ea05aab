package wasmengine

import (
	"context"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/runloop/errors"
	"github.com/wippyai/runloop/timers"
)

// Module is a compiled guest that can be instantiated many times.
type Module struct {
	runtime  *Runtime
	compiled wazero.CompiledModule
}

// Instantiate creates an engine instance. name is used in logs; an empty
// name is replaced by a generated one. The guest's start export, if any,
// runs before Instantiate returns and may arm timers.
func (m *Module) Instantiate(ctx context.Context, name string) (*Instance, error) {
	id := uuid.New()
	if name == "" {
		name = "wasm-" + id.String()[:8]
	}

	inst := &Instance{
		runtime: m.runtime,
		clock:   m.runtime.clock,
		log:     m.runtime.log.With(zap.String("engine", name)),
		timers:  timers.New(),
		name:    name,
		id:      id,
		started: m.runtime.clock.Now(),
	}
	inst.ctx = WithInstance(context.WithoutCancel(ctx), inst)

	if !m.runtime.track(inst) {
		return nil, errors.Closed(errors.PhaseLoad, "runtime")
	}

	modConfig := wazero.NewModuleConfig().
		WithName(id.String()).
		WithStartFunctions()
	mod, err := m.runtime.runtime.InstantiateModule(inst.ctx, m.compiled, modConfig)
	if err != nil {
		m.runtime.untrack(inst)
		return nil, errors.Instantiation(err)
	}
	inst.mod = mod
	inst.onTimer = mod.ExportedFunction(ExportOnTimer)

	if start := mod.ExportedFunction(ExportStart); start != nil {
		if _, err := start.Call(inst.ctx); err != nil {
			return nil, multierr.Append(errors.Trap(ExportStart, err), inst.Close(ctx))
		}
	}

	inst.log.Debug("instance started", zap.Int("timers", inst.timers.Len()))
	return inst, nil
}

// Close releases the compiled module. Existing instances keep running.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}
