package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/triplesync/internal/backup"
	"github.com/roach88/triplesync/internal/engine"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Syntax string
	Out    string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the graph as Turtle or JSON",
		Long: `Write the replica's graph. Turtle contains live triples only; JSON
contains every register, tombstones included.

Example:
  triplesync export --syntax turtle --out tasks.ttl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				var buf bytes.Buffer
				if err := r.ExportGraph(&buf, opts.Syntax); err != nil {
					return WrapExitError(ExitCommandError, "failed to export graph", err)
				}
				if opts.Out == "" {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				if err := os.WriteFile(opts.Out, buf.Bytes(), 0o644); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				data := map[string]any{"path": opts.Out, "bytes": buf.Len(), "syntax": opts.Syntax}
				return opts.formatter(cmd).Result(data, fmt.Sprintf("Wrote %d bytes to %s\n", buf.Len(), opts.Out))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Syntax, "syntax", engine.SyntaxTurtle, "export syntax (turtle|json)")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")

	return cmd
}

// BackupOptions holds flags for the backup command. Unset flags fall back
// to the backup section of the config.
type BackupOptions struct {
	*RootOptions
	Bucket   string
	Key      string
	Endpoint string
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload a Turtle export to S3-compatible storage",
		Long: `Upload a Turtle export of the replica. Credentials come from the
standard AWS environment and shared config files.

Example:
  triplesync backup --bucket my-tasks
  triplesync backup --bucket dev --endpoint http://localhost:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := backup.Config(opts.Config.Backup)
			if opts.Bucket != "" {
				cfg.Bucket = opts.Bucket
			}
			if opts.Endpoint != "" {
				cfg.Endpoint = opts.Endpoint
				cfg.PathStyle = true
			}
			if cfg.Bucket == "" {
				return NewExitError(ExitCommandError, "no bucket: pass --bucket or set backup.bucket")
			}

			putter := opts.putter
			if putter == nil {
				client, err := backup.NewClient(cmd.Context(), cfg)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to configure S3", err)
				}
				putter = client
			}

			return opts.withReplica(cmd.Context(), func(r *engine.Replica, _ engine.Persistence) error {
				res, err := backup.Upload(cmd.Context(), putter, cfg, r, opts.Key)
				if err != nil {
					return WrapExitError(ExitFailure, "backup failed", err)
				}
				opts.Logger.Info("backup uploaded", "bucket", res.Bucket, "key", res.Key, "bytes", res.Bytes)
				return opts.formatter(cmd).Result(res, fmt.Sprintf("Uploaded s3://%s/%s (%d bytes)\n", res.Bucket, res.Key, res.Bytes))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "destination bucket")
	cmd.Flags().StringVar(&opts.Key, "key", "", "object key (default <prefix><replica>/<clock>-<digest>.ttl)")
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "S3-compatible endpoint URL (enables path-style addressing)")

	return cmd
}
