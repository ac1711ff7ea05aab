// Package config loads the YAML configuration of the runloop command.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/runloop/errors"
)

// Engine kinds.
const (
	KindTask = "task"
	KindWasm = "wasm"
)

// Waker kinds.
const (
	WakerChan    = "chan"
	WakerEventfd = "eventfd"
)

type Config struct {
	Log     Log      `yaml:"log"`
	Source  Source   `yaml:"source"`
	Engines []Engine `yaml:"engines"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Source struct {
	Waker string `yaml:"waker"`
	// Keys enables terminal keystrokes as messages.
	Keys bool `yaml:"keys"`
}

// Engine describes one engine instance to create at startup.
type Engine struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Path is the guest module for wasm engines.
	Path string `yaml:"path"`

	// Heartbeat makes a task engine post a status line at this interval.
	Heartbeat time.Duration `yaml:"heartbeat"`

	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// Default returns a configuration with one task engine and terminal input.
func Default() *Config {
	return &Config{
		Log:    Log{Level: "info"},
		Source: Source{Waker: WakerChan, Keys: true},
		Engines: []Engine{
			{Name: "main", Kind: KindTask, Heartbeat: time.Second},
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Config(nil, "read "+path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, errors.Config(nil, "decode yaml", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values and engine names.
func (c *Config) Validate() error {
	if _, err := c.Log.ZapLevel(); err != nil {
		return err
	}
	switch c.Source.Waker {
	case "", WakerChan, WakerEventfd:
	default:
		return errors.Config([]string{"source", "waker"},
			fmt.Sprintf("unknown waker %q", c.Source.Waker), nil)
	}

	seen := make(map[string]bool, len(c.Engines))
	for i, e := range c.Engines {
		path := []string{"engines", strconv.Itoa(i)}
		if e.Name == "" {
			return errors.Config(append(path, "name"), "name is required", nil)
		}
		if seen[e.Name] {
			return errors.Config(append(path, "name"), fmt.Sprintf("duplicate engine %q", e.Name), nil)
		}
		seen[e.Name] = true

		switch e.Kind {
		case KindTask:
			if e.Heartbeat < 0 {
				return errors.Config(append(path, "heartbeat"), "must not be negative", nil)
			}
		case KindWasm:
			if e.Path == "" {
				return errors.Config(append(path, "path"), "wasm engines need a module path", nil)
			}
		default:
			return errors.Config(append(path, "kind"), fmt.Sprintf("unknown engine kind %q", e.Kind), nil)
		}
	}
	return nil
}

// ZapLevel parses the configured level; empty means info.
func (l Log) ZapLevel() (zapcore.Level, error) {
	if l.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return lvl, errors.Config([]string{"log", "level"}, "invalid level", err)
	}
	return lvl, nil
}
