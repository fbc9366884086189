package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	cases := []struct {
		name     string
		json     bool
		debug    bool
		encoding string
		level    zapcore.Level
	}{
		{name: "defaults", encoding: "console", level: zapcore.InfoLevel},
		{name: "json", json: true, encoding: "json", level: zapcore.InfoLevel},
		{name: "debug", debug: true, encoding: "console", level: zapcore.DebugLevel},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config(tc.json, tc.debug)
			if cfg.Encoding != tc.encoding {
				t.Fatalf("expected encoding %q, got %q", tc.encoding, cfg.Encoding)
			}
			if got := cfg.Level.Level(); got != tc.level {
				t.Fatalf("expected level %s, got %s", tc.level, got)
			}
			if cfg.DisableStacktrace == tc.debug {
				t.Fatalf("expected stack traces only in debug mode")
			}
			if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
				t.Fatalf("expected logs on stderr, got %v", cfg.OutputPaths)
			}
			if cfg.EncoderConfig.MessageKey != "step" {
				t.Fatalf("unexpected message key %q", cfg.EncoderConfig.MessageKey)
			}
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New(true, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level to be enabled")
	}
}
