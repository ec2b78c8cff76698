package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/rdf"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Since int64
	ID    string
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the operation log",
		Long: `Show logged operations, oldest first. With --id, show a single
operation (ids look like op-<timestamp>-<replica>).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				if opts.ID != "" {
					op, err := r.Operation(cmd.Context(), opts.ID)
					if err != nil {
						return replicaError("failed to read operation", err)
					}
					return opts.formatter(cmd).Result(op, formatOperations([]rdf.Operation{op}))
				}
				ops := r.OperationsSince(rdf.LogicalTime(opts.Since))
				return opts.formatter(cmd).Result(ops, formatOperations(ops))
			})
		},
	}

	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only operations with timestamp greater than this")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show only the operation with this id")

	return cmd
}

func formatOperations(ops []rdf.Operation) string {
	if len(ops) == 0 {
		return "No operations.\n"
	}
	var b strings.Builder
	for _, op := range ops {
		fmt.Fprintf(&b, "%s  %-6s %d triple(s)\n", op.ID, op.Kind, len(op.Triples))
		for _, t := range op.Triples {
			fmt.Fprintf(&b, "    %s\n", t)
		}
	}
	return b.String()
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show replica id, counts, clock and digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				st, err := r.Stats()
				if err != nil {
					return WrapExitError(ExitFailure, "failed to compute status", err)
				}
				var b strings.Builder
				fmt.Fprintf(&b, "replica:    %s\n", st.ReplicaID)
				fmt.Fprintf(&b, "backend:    %s (%s)\n", opts.Backend, opts.DataDir)
				fmt.Fprintf(&b, "tasks:      %d\n", st.Tasks)
				fmt.Fprintf(&b, "registers:  %d (%d live)\n", st.Registers, st.Live)
				fmt.Fprintf(&b, "operations: %d\n", st.Operations)
				fmt.Fprintf(&b, "clock:      %d\n", st.Clock)
				fmt.Fprintf(&b, "digest:     %s\n", st.Digest)
				if ep := opts.Config.Sync.Endpoint; ep != "" {
					fmt.Fprintf(&b, "endpoint:   %s\n", ep)
				}
				return opts.formatter(cmd).Result(st, b.String())
			})
		},
	}
}

// ReplayResult is the outcome of the replay command.
type ReplayResult struct {
	Operations int    `json:"operations"`
	Registers  int    `json:"registers"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Verify no logged write is missing from the persisted graph",
		Long: `Merge the persisted operation log over the persisted triples and check
that nothing changes. A change means a logged write was lost.

Exit codes:
  0 - persisted triples are a fixed point of the log
  1 - the log holds writes missing from the triples
  2 - command error (store could not be opened)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withReplica(cmd.Context(), func(_ *engine.Replica, p engine.Persistence) error {
				triples, err := p.LoadTriples(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load triples", err)
				}
				ops, err := p.LoadOperations(cmd.Context(), 0)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to load operations", err)
				}

				res := ReplayResult{Operations: len(ops), Registers: len(triples), OK: true}
				verr := engine.VerifyReplay(triples, ops)
				f := opts.formatter(cmd)
				if verr != nil {
					res.OK = false
					res.Error = verr.Error()
					if opts.Format == "json" {
						_ = f.Error(CodeReplay, verr.Error(), res)
					}
					return WrapExitError(ExitFailure, "replay mismatch", verr)
				}
				return f.Result(res, fmt.Sprintf("Replay OK: %d operations, %d registers\n", res.Operations, res.Registers))
			})
		},
	}
}
