package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fenwick-sync/wsstore/internal/driver"
)

// sweepResult is the JSON payload of a sweep run.
type sweepResult struct {
	Removed int `json:"removed"`
}

// NewSweepCommand manually triggers an expiry sweep,
// removing every document whose deleteAfter has passed. A running
// Store already sweeps on Begin and filters expired documents out of
// every query, so this is an operational tool for reclaiming disk space
// between restarts, not something correctness depends on.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sweep",
		Short:         "Remove expired documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(rootOpts, cmd)
		},
	}
	return cmd
}

func runSweep(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	ctx := context.Background()
	drv, err := openDriver(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer drv.Close(ctx, driver.CloseOptions{})

	removed, err := drv.RemoveExpiredDocs(ctx, nowUnixMicro())
	if err != nil {
		return WrapExitError(ExitCommandError, "sweep", err)
	}

	formatter.VerboseLog("removed %d expired document(s)", removed)
	return formatter.Success(sweepResult{Removed: removed})
}
