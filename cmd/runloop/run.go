package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/runloop/config"
	"github.com/wippyai/runloop/loop"
	"github.com/wippyai/runloop/msgqueue"
	"github.com/wippyai/runloop/taskengine"
	"github.com/wippyai/runloop/termsource"
	"github.com/wippyai/runloop/wasmengine"
)

func (r *rootCmd) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the loop and run configured engines until quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			setLoggers(log)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := newApp(ctx, cfg, log, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(ctx); cerr != nil {
					log.Warn("shutdown", zap.Error(cerr))
				}
			}()

			if cfg.Source.Keys {
				reader := termsource.New(os.Stdin, a.queue, termsource.DefaultKeyMap(), log.Named("keys"))
				if err := reader.Start(); err != nil {
					log.Warn("terminal input disabled", zap.Error(err))
				} else {
					a.raw = reader.Raw()
					defer func() { _ = reader.Stop() }()
				}
			}

			stop := watchSignals(a.queue, log)
			defer stop()

			code, err := a.run()
			r.exitCode = code
			return err
		},
	}
}

func (r *rootCmd) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if r.cfgPath != "" {
		var err error
		if cfg, err = config.Load(r.cfgPath); err != nil {
			return nil, err
		}
	}
	if r.logLevel != "" {
		cfg.Log.Level = r.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	lvl, err := cfg.ZapLevel()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func setLoggers(log *zap.Logger) {
	loop.SetLogger(log.Named("loop"))
	msgqueue.SetLogger(log.Named("queue"))
	taskengine.SetLogger(log.Named("task"))
	wasmengine.SetLogger(log.Named("wasm"))
}

// watchSignals turns SIGINT and SIGTERM into quit messages carrying the
// conventional 128+signal exit code.
func watchSignals(q *msgqueue.Queue, log *zap.Logger) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			code := 130
			if sig == syscall.SIGTERM {
				code = 143
			}
			log.Info("signal received", zap.Stringer("signal", sig))
			if err := q.PostQuit(code); err != nil {
				log.Warn("post quit failed", zap.Error(err))
			}
		case <-done:
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
