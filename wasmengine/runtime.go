package wasmengine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/runloop/clock"
	"github.com/wippyai/runloop/errors"
)

// Config holds configuration for runtime creation
type Config struct {
	Clock  clock.Clock
	Logger *zap.Logger

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	MemoryLimitPages uint32
}

// Runtime compiles guest modules and owns the host module they import.
// It is safe for concurrent use.
type Runtime struct {
	runtime wazero.Runtime
	host    api.Module
	clock   clock.Clock
	log     *zap.Logger

	mu        sync.Mutex
	instances map[*Instance]struct{}
	closed    bool
}

// NewRuntime creates a runtime with default configuration.
func NewRuntime(ctx context.Context) (*Runtime, error) {
	return NewRuntimeWithConfig(ctx, nil)
}

// NewRuntimeWithConfig creates a runtime with custom configuration.
func NewRuntimeWithConfig(ctx context.Context, cfg *Config) (*Runtime, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	rt := &Runtime{
		clock:     clock.System(),
		log:       Logger(),
		instances: make(map[*Instance]struct{}),
	}
	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.Clock != nil {
			rt.clock = cfg.Clock
		}
		if cfg.Logger != nil {
			rt.log = cfg.Logger
		}
	}

	rt.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	host, err := instantiateHostModule(ctx, rt.runtime)
	if err != nil {
		return nil, multierr.Append(errors.Instantiation(err), rt.runtime.Close(ctx))
	}
	rt.host = host
	return rt, nil
}

// Load compiles a guest module. The module must export on_timer(i32).
func (r *Runtime) Load(ctx context.Context, wasm []byte) (*Module, error) {
	if len(wasm) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module")
	}
	if r.isClosed() {
		return nil, errors.Closed(errors.PhaseLoad, "runtime")
	}

	compiled, err := r.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	def, ok := compiled.ExportedFunctions()[ExportOnTimer]
	if !ok {
		return nil, multierr.Append(
			errors.NotFound(errors.PhaseLoad, "export", ExportOnTimer),
			compiled.Close(ctx))
	}
	if params := def.ParamTypes(); len(params) != 1 || params[0] != api.ValueTypeI32 {
		return nil, multierr.Append(
			errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Op(ExportOnTimer).
				Detail("expected signature (i32) -> ()").
				Build(),
			compiled.Close(ctx))
	}

	return &Module{runtime: r, compiled: compiled}, nil
}

// Instances returns the number of open instances.
func (r *Runtime) Instances() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Close closes every open instance and releases the runtime. Unregister
// instances from the loop before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	open := make([]*Instance, 0, len(r.instances))
	for inst := range r.instances {
		open = append(open, inst)
	}
	r.mu.Unlock()

	var err error
	for _, inst := range open {
		err = multierr.Append(err, inst.Close(ctx))
	}
	return multierr.Append(err, r.runtime.Close(ctx))
}

func (r *Runtime) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Runtime) track(inst *Instance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.instances[inst] = struct{}{}
	return true
}

func (r *Runtime) untrack(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, inst)
}
