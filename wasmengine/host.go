package wasmengine

import (
	"context"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// HostModule is the import module name guests use for timer functions.
const HostModule = "runloop"

// Guest ABI.
const (
	ExportOnTimer = "on_timer" // (id i32) -> ()
	ExportStart   = "start"    // () -> (), optional
)

type ctxKeyInstance struct{}

// WithInstance returns a context that routes host calls to inst.
func WithInstance(ctx context.Context, inst *Instance) context.Context {
	return context.WithValue(ctx, ctxKeyInstance{}, inst)
}

// InstanceFrom returns the instance attached by WithInstance, or nil.
func InstanceFrom(ctx context.Context) *Instance {
	if v := ctx.Value(ctxKeyInstance{}); v != nil {
		return v.(*Instance)
	}
	return nil
}

// instantiateHostModule registers the runloop host functions:
//
//	set_timer(id i32, delay_ms i32)   arm or re-arm timer id
//	clear_timer(id i32)               disarm timer id
//	now_ms() -> i64                   milliseconds since instantiation
func instantiateHostModule(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return r.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(hostSetTimer),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("set_timer").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(hostClearTimer),
			[]api.ValueType{api.ValueTypeI32}, nil).
		Export("clear_timer").
		NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(hostNowMs),
			nil, []api.ValueType{api.ValueTypeI64}).
		Export("now_ms").
		Instantiate(ctx)
}

func hostSetTimer(ctx context.Context, _ api.Module, stack []uint64) {
	inst := InstanceFrom(ctx)
	if inst == nil {
		Logger().Warn("set_timer called outside an instance")
		return
	}
	id := api.DecodeU32(stack[0])
	delay := api.DecodeI32(stack[1])
	if delay < 0 {
		delay = 0
	}
	inst.setTimer(id, time.Duration(delay)*time.Millisecond)
}

func hostClearTimer(ctx context.Context, _ api.Module, stack []uint64) {
	inst := InstanceFrom(ctx)
	if inst == nil {
		Logger().Warn("clear_timer called outside an instance")
		return
	}
	inst.clearTimer(api.DecodeU32(stack[0]))
}

func hostNowMs(ctx context.Context, _ api.Module, stack []uint64) {
	inst := InstanceFrom(ctx)
	if inst == nil {
		stack[0] = 0
		return
	}
	stack[0] = api.EncodeI64(inst.sinceStart().Milliseconds())
}

func debugTimer(log *zap.Logger, msg string, id uint32, d time.Duration) {
	if ce := log.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(zap.Uint32("timer", id), zap.Duration("delay", d))
	}
}
