package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/runloop/config"
	"github.com/wippyai/runloop/errors"
	"github.com/wippyai/runloop/termsource"
)

func testConfig(engines ...config.Engine) *config.Config {
	cfg := config.Default()
	cfg.Source.Keys = false
	cfg.Engines = engines
	return cfg
}

func runApp(t *testing.T, a *app, quitAfter time.Duration, code int) int {
	t.Helper()
	go func() {
		time.Sleep(quitAfter)
		_ = a.queue.PostQuit(code)
	}()

	type result struct {
		code int
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c, err := a.run()
		done <- result{c, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		return r.code
	case <-time.After(5 * time.Second):
		t.Fatal("app did not quit")
	}
	return -1
}

func TestHeartbeatPrintsStatus(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	cfg := testConfig(config.Engine{Name: "beat", Kind: config.KindTask, Heartbeat: 5 * time.Millisecond})

	a, err := newApp(ctx, cfg, zap.NewNop(), &out)
	require.NoError(t, err)
	defer a.close(ctx)

	assert.Equal(t, 7, runApp(t, a, 100*time.Millisecond, 7))
	assert.Contains(t, out.String(), "runloop")
	assert.Contains(t, out.String(), "beat")
	assert.Contains(t, out.String(), "ran=")
	assert.NotZero(t, a.loop.Stats().Dispatched)
}

func TestKeysArePrinted(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a, err := newApp(ctx, testConfig(), zap.NewNop(), &out)
	require.NoError(t, err)
	defer a.close(ctx)

	require.NoError(t, a.queue.Post(termsource.Target, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")}))
	runApp(t, a, 20*time.Millisecond, 0)
	assert.Contains(t, out.String(), "key ")
	assert.Contains(t, out.String(), "x")
}

func TestBadStatusPayloadStopsLoop(t *testing.T) {
	ctx := context.Background()
	a, err := newApp(ctx, testConfig(), zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)
	defer a.close(ctx)

	require.NoError(t, a.queue.Post(targetStatus, "bogus"))
	code, err := a.run()
	assert.Equal(t, 1, code)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDispatch, Kind: errors.KindInvalidData})
}

func TestMissingWasmModule(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.Engine{
		Name: "guest",
		Kind: config.KindWasm,
		Path: filepath.Join(t.TempDir(), "missing.wasm"),
	})

	_, err := newApp(ctx, cfg, zap.NewNop(), &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInvalidWasmModule(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bad.wasm")
	require.NoError(t, os.WriteFile(path, []byte("not wasm"), 0o600))
	cfg := testConfig(config.Engine{Name: "guest", Kind: config.KindWasm, Path: path})

	_, err := newApp(ctx, cfg, zap.NewNop(), &bytes.Buffer{})
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData})
}

func TestCloseUnregistersEngines(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(
		config.Engine{Name: "a", Kind: config.KindTask},
		config.Engine{Name: "b", Kind: config.KindTask},
	)
	a, err := newApp(ctx, cfg, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, a.loop.Engines(), 2)

	require.NoError(t, a.close(ctx))
	assert.Empty(t, a.loop.Engines())
	assert.Error(t, a.queue.Post(targetWake, nil))
}

func TestLineEndingsFollowRawMode(t *testing.T) {
	var out bytes.Buffer
	a := &app{out: &out}

	a.println("piped")
	a.raw = true
	a.println("raw")
	assert.Equal(t, "piped\nraw\r\n", out.String())
}
