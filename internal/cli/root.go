package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/triplesync/internal/backup"
	"github.com/roach88/triplesync/internal/config"
	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/relay"
	"github.com/roach88/triplesync/internal/transport"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DataDir    string
	ConfigPath string
	Backend    string // "sqlite" | "badger" | "memory"
	Verbose    bool
	Format     string // "json" | "text"

	// Resolved in PersistentPreRunE.
	Config config.Config
	Logger *slog.Logger

	// Test seams. Nil means the production implementation.
	wall       engine.WallClock
	ids        engine.IDGenerator
	putter     backup.Putter
	transport  transport.Transport
	relayReady func(*relay.Server)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidBackends defines the allowed local persistence backends.
var ValidBackends = []string{"sqlite", "badger", "memory"}

// NewRootCommand creates the root command for the triplesync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triplesync",
		Short: "Local-first task list replicated as RDF triples",
		Long: `triplesync keeps a task list as a graph of RDF triples. Every replica
accepts writes offline and converges with its peers through a relay using
last-writer-wins registers keyed by (subject, predicate).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "replica data directory (default from config, .triplesync)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default <data-dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "local persistence (sqlite|badger|memory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewRenameCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// resolve validates global flags, loads the config file and installs the
// logger. Flags override file values.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	path := o.ConfigPath
	if path == "" {
		dir := o.DataDir
		if dir == "" {
			dir = config.Default().DataDir
		}
		path = filepath.Join(dir, "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	o.ConfigPath = path

	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if !slices.Contains(ValidBackends, cfg.Backend) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid backend %q: must be one of %v", cfg.Backend, ValidBackends))
	}
	o.DataDir = cfg.DataDir
	o.Backend = cfg.Backend
	o.Config = cfg

	o.Logger = newLogger(cmd.ErrOrStderr(), cfg.Log, o.Verbose)
	slog.SetDefault(o.Logger)
	return nil
}

// newLogger builds the slog logger: level from --verbose (debug) or the
// config, text or JSON handler from the config.
func newLogger(w io.Writer, cfg config.LogConfig, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
