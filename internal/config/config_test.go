package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
backend: badger
sync:
  endpoint: ws://localhost:8080/rooms/home/sync
  interval: 1m30s
  push_on_change: true
log:
  level: debug
`))
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Backend)
	assert.Equal(t, "ws://localhost:8080/rooms/home/sync", cfg.Sync.Endpoint)
	assert.Equal(t, 90*time.Second, cfg.Sync.Interval.Std())
	assert.True(t, cfg.Sync.PushOnChange)
	assert.Equal(t, 3*time.Second, cfg.Sync.RetryDelay.Std(), "untouched keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown top-level key", "colour: blue\n"},
		{"unknown nested key", "sync:\n  endpiont: x\n"},
		{"bad backend", "backend: postgres\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad duration", "sync:\n  interval: soon\n"},
		{"duration as number", "sync:\n  interval: 30\n"},
		{"bad relay driver", "relay:\n  driver: mysql\n"},
		{"malformed yaml", "sync: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  endpoint: ws://a\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c Config) { got <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  endpoint: ws://b\n"), 0o644))

	deadline := time.After(3 * time.Second)
	for seen := ""; seen != "ws://b"; {
		select {
		case c := <-got:
			seen = c.Sync.Endpoint
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}

	cancel()
	assert.NoError(t, <-done)
}
