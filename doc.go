// Package runloop services a native message queue and embedded engine
// instances from a single goroutine without starving either.
//
// # Architecture Overview
//
//	runloop/          Collaborator contracts: Engine, MessageSource, Wake
//	├── loop/         EventLoop and the engine registry
//	├── clock/        Monotonic clock (system and fake)
//	├── msgqueue/     Portable message queue with pluggable wakers
//	├── win32/        Native Windows message pump
//	├── timers/       Deadline-ordered timer queue
//	├── taskengine/   Go task engine (post, post-delayed)
//	├── wasmengine/   wazero-backed engine driving guest timers
//	├── termsource/   Terminal keystrokes as queue messages
//	├── config/       YAML configuration for the CLI
//	├── errors/       Structured error types
//	└── cmd/runloop/  CLI running configured engines
//
// # Quick Start
//
//	q := msgqueue.New(nil)
//	defer q.Close()
//
//	eng := taskengine.New(nil)
//	l := loop.New(q)
//	l.RegisterEngine(eng)
//	defer l.UnregisterEngine(eng)
//
//	eng.PostDelayed(func() { q.PostQuit(0) }, time.Second)
//	if err := l.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Scheduling
//
// Each iteration waits until either a message arrives or the earliest engine
// deadline passes, then drains every pending message. Engines are ticked
// after each dispatched message, so a burst of messages never starves engine
// work; when nothing was pending they are ticked once.
//
// # Thread Safety
//
// Loop and its registry are owned by the goroutine calling Run. Register and
// unregister engines from that goroutine (for example from a message
// handler) or serialize access yourself. msgqueue.Queue.Post and
// taskengine.Engine.Post are safe from any goroutine.
package runloop
