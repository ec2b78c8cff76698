package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/store"
	"github.com/roach88/triplesync/internal/store/badgerstore"
	"github.com/roach88/triplesync/internal/store/memstore"
)

// openedReplica is a replica together with the adapter it persists to.
type openedReplica struct {
	replica *engine.Replica
	store   engine.Persistence
	close   func() error
}

// Close retries any failed durable write, then closes the adapter.
func (o *openedReplica) Close(ctx context.Context) error {
	var flushErr error
	if o.replica.Dirty() {
		flushErr = o.replica.Flush(ctx)
	}
	return errors.Join(flushErr, o.close())
}

// openPersistence opens the configured local backend under the data dir.
func (o *RootOptions) openPersistence() (engine.Persistence, func() error, error) {
	if o.Backend == "memory" {
		return memstore.New(), func() error { return nil }, nil
	}
	if err := os.MkdirAll(o.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	switch o.Backend {
	case "badger":
		cfg := badgerstore.DefaultConfig(filepath.Join(o.DataDir, "badger"))
		cfg.Logger = o.Logger
		s, err := badgerstore.Open(cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		s, err := store.Open(filepath.Join(o.DataDir, "replica.db"))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// openReplica opens the local replica. Callers must Close it.
func (o *RootOptions) openReplica(ctx context.Context) (*openedReplica, error) {
	p, closeStore, err := o.openPersistence()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open "+o.Backend+" store", err)
	}

	engineOpts := []engine.Option{
		engine.WithPersistence(p),
		engine.WithLogger(o.Logger),
	}
	if o.wall != nil {
		engineOpts = append(engineOpts, engine.WithWallClock(o.wall))
	}
	if o.ids != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(o.ids))
	}
	r, err := engine.Open(ctx, engineOpts...)
	if err != nil {
		_ = closeStore()
		return nil, WrapExitError(ExitFailure, "failed to open replica", err)
	}
	o.Logger.Debug("replica opened", "replica", r.ID(), "backend", o.Backend, "data_dir", o.DataDir)
	return &openedReplica{replica: r, store: p, close: closeStore}, nil
}

// withReplica opens the replica, runs fn and closes it, reporting the
// first error.
func (o *RootOptions) withReplica(ctx context.Context, fn func(r *engine.Replica, p engine.Persistence) error) error {
	opened, err := o.openReplica(ctx)
	if err != nil {
		return err
	}
	runErr := fn(opened.replica, opened.store)
	if closeErr := opened.Close(ctx); closeErr != nil {
		o.Logger.Error("error closing replica", "error", closeErr)
		if runErr == nil {
			runErr = WrapExitError(ExitFailure, "failed to close replica", closeErr)
		}
	}
	return runErr
}
