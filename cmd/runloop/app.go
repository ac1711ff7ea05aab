package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/runloop"
	"github.com/wippyai/runloop/config"
	"github.com/wippyai/runloop/errors"
	"github.com/wippyai/runloop/loop"
	"github.com/wippyai/runloop/msgqueue"
	"github.com/wippyai/runloop/taskengine"
	"github.com/wippyai/runloop/termsource"
	"github.com/wippyai/runloop/wasmengine"
)

// Message targets handled by the app.
const (
	targetWake   = "wake"
	targetStatus = "status"
)

// status is the payload of heartbeat messages.
type status struct {
	Engine string
	Ran    uint64
	At     time.Time
}

type app struct {
	cfg   *config.Config
	log   *zap.Logger
	out   io.Writer
	queue *msgqueue.Queue
	loop  *loop.Loop

	runtime *wasmengine.Runtime
	engines []runloop.Engine
	closers []func(context.Context) error

	// raw is set while the terminal is in raw mode and needs CRLF.
	raw bool
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, out io.Writer) (*app, error) {
	waker, err := newWaker(cfg.Source.Waker)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:   cfg,
		log:   log,
		out:   out,
		queue: msgqueue.New(&msgqueue.Config{Waker: waker, Logger: log.Named("queue")}),
	}
	a.loop = loop.NewWithConfig(a.queue, &loop.Config{Logger: log.Named("loop")})

	router := a.queue.Router()
	router.HandleFunc(targetWake, func(*msgqueue.Message) error { return nil })
	router.HandleFunc(targetStatus, a.printStatus)
	router.HandleFunc(termsource.Target, a.printKey)

	for _, ec := range cfg.Engines {
		if err := a.addEngine(ctx, ec); err != nil {
			return nil, multierr.Append(err, a.close(ctx))
		}
	}
	return a, nil
}

func newWaker(kind string) (msgqueue.Waker, error) {
	if kind == config.WakerEventfd {
		return msgqueue.NewEventfdWaker()
	}
	return msgqueue.NewChanWaker(), nil
}

func (a *app) addEngine(ctx context.Context, ec config.Engine) error {
	var e runloop.Engine
	switch ec.Kind {
	case config.KindTask:
		e = a.newTaskEngine(ec)
	case config.KindWasm:
		inst, err := a.newWasmEngine(ctx, ec)
		if err != nil {
			return err
		}
		e = inst
	default:
		return errors.Unsupported(errors.PhaseConfig, "engine kind "+ec.Kind)
	}
	a.engines = append(a.engines, e)
	a.loop.RegisterEngine(e)
	a.log.Info("engine registered", zap.String("name", ec.Name), zap.String("kind", ec.Kind))
	return nil
}

func (a *app) newTaskEngine(ec config.Engine) *taskengine.Engine {
	e := taskengine.New(&taskengine.Config{
		Name:   ec.Name,
		Logger: a.log.Named("task"),
		Wakeup: func() { _ = a.queue.Post(targetWake, nil) },
	})
	if ec.Heartbeat > 0 {
		var beat func()
		beat = func() {
			_ = a.queue.Post(targetStatus, status{Engine: ec.Name, Ran: e.Stats().Ran, At: time.Now()})
			e.PostDelayed(beat, ec.Heartbeat)
		}
		e.PostDelayed(beat, ec.Heartbeat)
	}
	return e
}

func (a *app) newWasmEngine(ctx context.Context, ec config.Engine) (*wasmengine.Instance, error) {
	data, err := os.ReadFile(ec.Path)
	if err != nil {
		return nil, errors.Load("read "+ec.Path, err)
	}
	if a.runtime == nil {
		rt, err := wasmengine.NewRuntimeWithConfig(ctx, &wasmengine.Config{
			Logger:           a.log.Named("wasm"),
			MemoryLimitPages: ec.MemoryLimitPages,
		})
		if err != nil {
			return nil, err
		}
		a.runtime = rt
		a.closers = append(a.closers, rt.Close)
	}
	mod, err := a.runtime.Load(ctx, data)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mod.Close)
	return mod.Instantiate(ctx, ec.Name)
}

// run drives the loop until quit and returns the quit code.
func (a *app) run() (int, error) {
	a.println(titleStyle.Render("runloop") + " " +
		helpStyle.Render(fmt.Sprintf("%d engine(s), press q to quit", len(a.engines))))
	if err := a.loop.Run(); err != nil {
		return 1, err
	}
	stats := a.loop.Stats()
	a.log.Info("loop finished",
		zap.Uint64("iterations", stats.Iterations),
		zap.Uint64("dispatched", stats.Dispatched),
		zap.Uint64("ticks", stats.Ticks),
	)
	return a.queue.QuitCode(), nil
}

func (a *app) printStatus(msg *msgqueue.Message) error {
	s, ok := msg.Payload.(status)
	if !ok {
		return errors.InvalidData(errors.PhaseDispatch, []string{targetStatus}, fmt.Sprintf("unexpected payload %T", msg.Payload))
	}
	a.println(engineStyle.Render(s.Engine) + " " +
		helpStyle.Render(fmt.Sprintf("ran=%d at %s", s.Ran, s.At.Format(time.TimeOnly))))
	return nil
}

func (a *app) printKey(msg *msgqueue.Message) error {
	k, ok := msg.Payload.(tea.KeyMsg)
	if !ok {
		return errors.InvalidData(errors.PhaseDispatch, []string{termsource.Target}, fmt.Sprintf("unexpected payload %T", msg.Payload))
	}
	a.println("key " + keyStyle.Render(k.String()))
	return nil
}

func (a *app) println(s string) {
	eol := "\n"
	if a.raw {
		eol = "\r\n"
	}
	_, _ = io.WriteString(a.out, s+eol)
}

// close unregisters every engine and releases wasm resources and the queue.
func (a *app) close(ctx context.Context) error {
	for _, e := range a.engines {
		a.loop.UnregisterEngine(e)
	}
	a.engines = nil

	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i](ctx))
	}
	a.closers = nil
	return multierr.Append(err, a.queue.Close())
}
