package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fenwick-sync/wsstore/internal/driver"
)

// NewAuthorsCommand lists the sorted, unique authors of currently-live
// documents.
func NewAuthorsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authors",
		Short:         "List authors with at least one live document",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthors(rootOpts, cmd)
		},
	}
	return cmd
}

func runAuthors(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	ctx := context.Background()
	drv, err := openDriver(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer drv.Close(ctx, driver.CloseOptions{})

	authors, err := drv.Authors(ctx, nowUnixMicro())
	if err != nil {
		return WrapExitError(ExitCommandError, "query authors", err)
	}

	out := make([]string, len(authors))
	for i, a := range authors {
		out[i] = string(a)
	}

	formatter.VerboseLog("found %d author(s)", len(out))
	return formatter.Success(out)
}
