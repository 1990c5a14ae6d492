package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
)

// NewPathsCommand lists every live path in the store, optionally scoped
// to a prefix.
func NewPathsCommand(rootOpts *RootOptions) *cobra.Command {
	var prefix string
	var limit int

	cmd := &cobra.Command{
		Use:           "paths",
		Short:         "List live document paths",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPaths(rootOpts, cmd, prefix, limit)
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only list paths with this prefix")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of paths to return (0 = unlimited)")
	return cmd
}

func runPaths(opts *RootOptions, cmd *cobra.Command, prefix string, limit int) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	ctx := context.Background()
	drv, err := openDriver(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer drv.Close(ctx, driver.CloseOptions{})

	q := docmodel.Query{Limit: limit}
	if prefix != "" {
		q.PathPrefix = &prefix
	}
	q = docmodel.CleanUp(q)

	paths, err := drv.PathQuery(ctx, q, nowUnixMicro())
	if err != nil {
		return WrapExitError(ExitCommandError, "query paths", err)
	}

	formatter.VerboseLog("matched %d path(s)", len(paths))
	return formatter.Success(paths)
}
