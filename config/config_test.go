package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/runloop/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, WakerChan, cfg.Source.Waker)
	assert.Len(t, cfg.Engines, 1)
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
log:
  level: debug
  development: true
source:
  waker: eventfd
  keys: false
engines:
  - name: tasks
    kind: task
    heartbeat: 250ms
  - name: guest
    kind: wasm
    path: guest.wasm
    memory_limit_pages: 16
`))
	require.NoError(t, err)

	lvl, err := cfg.Log.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
	assert.True(t, cfg.Log.Development)
	assert.Equal(t, Source{Waker: WakerEventfd, Keys: false}, cfg.Source)
	assert.Equal(t, []Engine{
		{Name: "tasks", Kind: KindTask, Heartbeat: 250 * time.Millisecond},
		{Name: "guest", Kind: KindWasm, Path: "guest.wasm", MemoryLimitPages: 16},
	}, cfg.Engines)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		path []string
	}{
		{"unknown field", "bogus: 1", nil},
		{"bad level", "log: {level: loud}", []string{"log", "level"}},
		{"bad waker", "source: {waker: carrier-pigeon}", []string{"source", "waker"}},
		{"missing name", "engines: [{kind: task}]", []string{"engines", "0", "name"}},
		{"duplicate", "engines: [{name: a, kind: task}, {name: a, kind: task}]", []string{"engines", "1", "name"}},
		{"bad kind", "engines: [{name: a, kind: lua}]", []string{"engines", "0", "kind"}},
		{"wasm without path", "engines: [{name: a, kind: wasm}]", []string{"engines", "0", "path"}},
		{"negative heartbeat", "engines: [{name: a, kind: task, heartbeat: -1s}]", []string{"engines", "0", "heartbeat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var cfgErr *errors.Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, errors.PhaseConfig, cfgErr.Phase)
			if tt.path != nil {
				assert.Equal(t, tt.path, cfgErr.Path)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: warn}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
