package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 100 * time.Millisecond

// Watch calls onChange with the reloaded configuration whenever path is
// written or created (including a rename onto it). Invalid files are logged and
// skipped. Watch blocks until ctx is cancelled.
//
// Bursts of events (truncate then write) are coalesced: the file is read
// once it has been quiet for debounce.
//
// The parent directory is watched rather than the file so that editors
// which replace the file atomically are still seen.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			cfg, err := Load(abs)
			if err != nil {
				logger.Warn("config reload failed", "path", abs, "error", err)
				continue
			}
			logger.Info("config reloaded", "path", abs)
			onChange(cfg)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
