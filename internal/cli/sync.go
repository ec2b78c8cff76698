package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/triplesync/internal/config"
	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/syncer"
	"github.com/roach88/triplesync/internal/transport"
)

// SyncOptions holds flags for the sync and watch commands.
type SyncOptions struct {
	*RootOptions
	Endpoint string
	Timeout  time.Duration
}

func (o *SyncOptions) endpoint() string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	return o.Config.Sync.Endpoint
}

func (o *SyncOptions) syncConfig(endpoint string) syncer.Config {
	c := o.Config.Sync
	return syncer.Config{
		Endpoint:       endpoint,
		Interval:       c.Interval.Std(),
		RetryDelay:     c.RetryDelay.Std(),
		MaxRetryDelay:  c.MaxRetryDelay.Std(),
		RequestTimeout: c.RequestTimeout.Std(),
		PushOnChange:   c.PushOnChange,
	}
}

func (o *SyncOptions) transportFor(r *engine.Replica) transport.Transport {
	if o.transport != nil {
		return o.transport
	}
	return transport.NewWebSocket(r.ID(), transport.WithTransportLogger(o.Logger))
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one push/pull round against the relay",
		Long: `Connect to the relay, push operations and pull remote triples once.

Example:
  triplesync sync --endpoint ws://localhost:8080/rooms/home/sync`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := opts.endpoint()
			if endpoint == "" {
				return NewExitError(ExitCommandError, "no endpoint: pass --endpoint or set sync.endpoint")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			return opts.withReplica(ctx, func(r *engine.Replica, _ engine.Persistence) error {
				s := syncer.New(r, opts.transportFor(r), opts.syncConfig(endpoint), syncer.WithLogger(opts.Logger))
				defer s.Disconnect()

				if err := s.Connect(ctx); err != nil {
					return WrapExitError(ExitFailure, "sync failed", err)
				}
				status := s.Status()
				report := status.LastReport
				text := fmt.Sprintf("Pushed %d operation(s), pulled %d triple(s), %d changed\n",
					report.Pushed, report.Pulled, report.Changed)
				if err := opts.formatter(cmd).Result(status, text); err != nil {
					return err
				}
				if !report.OK() {
					return WrapExitError(ExitFailure, "sync round incomplete", errors.Join(report.PushErr, report.PullErr))
				}
				if report.PersistErr != nil {
					return WrapExitError(ExitFailure, "merged triples not saved", report.PersistErr)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "relay URL (default sync.endpoint)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "overall timeout")

	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the replica synced until interrupted",
		Long: `Stay connected to the relay: sync on an interval, on relay notifications
and (with sync.push_on_change) after local writes. Reconnects with backoff.
Edits to the config file change the endpoint without a restart, unless
--endpoint pins it. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return opts.withReplica(ctx, func(r *engine.Replica, _ engine.Persistence) error {
				return opts.watch(ctx, cmd, r)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "relay URL (default sync.endpoint, reloaded on change)")

	return cmd
}

func (o *SyncOptions) watch(ctx context.Context, cmd *cobra.Command, r *engine.Replica) error {
	s := syncer.New(r, o.transportFor(r), o.syncConfig(o.endpoint()), syncer.WithLogger(o.Logger))
	unsubscribe := s.OnStatus(func(st syncer.Status) {
		o.Logger.Info("sync status", "state", st.State, "endpoint", st.Endpoint, "error", st.LastError)
	})
	defer unsubscribe()

	f := o.formatter(cmd)
	f.VerboseLog("watching replica %s (config %s)", r.ID(), o.ConfigPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Run(gctx)
	})
	if o.Endpoint == "" {
		if _, err := os.Stat(filepath.Dir(o.ConfigPath)); err == nil {
			g.Go(func() error {
				return config.Watch(gctx, o.ConfigPath, o.Logger, func(c config.Config) {
					s.Configure(c.Sync.Endpoint)
				})
			})
		}
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "watch failed", err)
	}
	o.Logger.Info("watch stopped")
	return nil
}
