package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/projection"
	"github.com/roach88/triplesync/internal/rdf"
)

// NewAddCommand creates the add command.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>...",
		Short: "Create a task",
		Long: `Create a task with the given title. Words are joined with spaces.

Example:
  triplesync add Buy milk`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args, " ")
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				id, err := r.CreateTask(cmd.Context(), title)
				if err != nil {
					return replicaError("failed to create task", err)
				}
				task, _ := r.Task(id)
				return opts.formatter(cmd).Result(task, fmt.Sprintf("Created %s\n", id))
			})
		},
	}
}

// NewToggleCommand creates the toggle command.
func NewToggleCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip a task between open and completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				completed, err := r.ToggleField(cmd.Context(), id, "completed")
				if err != nil {
					return replicaError("failed to toggle task", err)
				}
				state := "reopened"
				if completed {
					state = "completed"
				}
				data := map[string]any{"id": id, "completed": completed}
				return opts.formatter(cmd).Result(data, fmt.Sprintf("%s %s\n", id, state))
			})
		},
	}
}

// NewRenameCommand creates the rename command.
func NewRenameCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>...",
		Short: "Change a task's title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if title == "" {
				return NewExitError(ExitCommandError, "title is required")
			}
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				if err := r.SetField(cmd.Context(), id, "title", rdf.String(title)); err != nil {
					return replicaError("failed to rename task", err)
				}
				task, _ := r.Task(id)
				return opts.formatter(cmd).Result(task, fmt.Sprintf("Renamed %s\n", id))
			})
		},
	}
}

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				if err := r.Delete(cmd.Context(), id); err != nil {
					return replicaError("failed to delete task", err)
				}
				return opts.formatter(cmd).Result(map[string]any{"id": id, "deleted": true}, fmt.Sprintf("Deleted %s\n", id))
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	All bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				tasks := r.List()
				if !opts.All {
					open := tasks[:0:0]
					for _, t := range tasks {
						if !t.Completed {
							open = append(open, t)
						}
					}
					tasks = open
				}
				return opts.formatter(cmd).Result(tasks, formatTasks(tasks))
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "include completed tasks")

	return cmd
}

func formatTasks(tasks []projection.Task) string {
	if len(tasks) == 0 {
		return "No tasks.\n"
	}
	var b strings.Builder
	for _, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		fmt.Fprintf(&b, "[%s] %s  %s\n", mark, t.ID, t.Title)
	}
	return b.String()
}
