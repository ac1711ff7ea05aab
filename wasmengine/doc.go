// Package wasmengine runs WebAssembly guests as run loop engines.
//
// A guest is a core module that imports timer functions from the "runloop"
// host module and exports a callback:
//
//	(import "runloop" "set_timer"   (func (param i32 i32)))  ;; id, delay ms
//	(import "runloop" "clear_timer" (func (param i32)))      ;; id
//	(import "runloop" "now_ms"      (func (result i64)))
//	(export "on_timer" (func (param i32)))                   ;; required
//	(export "start"    (func))                               ;; optional
//
// Every Instance is a runloop.Engine. ProcessMessages fires each due timer
// into on_timer and reports the next armed deadline, so guest timers are
// serviced by the same loop as native messages.
//
// # Usage
//
//	rt, err := wasmengine.NewRuntime(ctx)
//	if err != nil {
//	    return err
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    return err
//	}
//	inst, err := mod.Instantiate(ctx, "clock")
//	if err != nil {
//	    return err
//	}
//	l.RegisterEngine(inst)
//	defer l.UnregisterEngine(inst)
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. Instance is NOT
// thread-safe and must only be touched from the loop goroutine.
package wasmengine
