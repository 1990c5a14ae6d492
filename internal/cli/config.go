package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fenwick-sync/wsstore/internal/driver"
)

// NewConfigCommand groups the workspace metadata
// inspection subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace metadata",
	}
	cmd.AddCommand(NewConfigGetCommand(rootOpts))
	return cmd
}

// NewConfigGetCommand reads a single metadata key. Config has no
// "dump everything" operation at the driver level (only
// get/set/delete/deleteAll by key), so this is the read surface
// wsstore-inspect exposes.
func NewConfigGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "get <key>",
		Short:         "Read one workspace metadata key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runConfigGet(opts *RootOptions, cmd *cobra.Command, key string) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	ctx := context.Background()
	drv, err := openDriver(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer drv.Close(ctx, driver.CloseOptions{})

	value, ok, err := drv.GetConfig(ctx, key)
	if err != nil {
		return WrapExitError(ExitCommandError, "read config", err)
	}
	if !ok {
		return formatter.Error("E_NOT_FOUND", "no such config key: "+key, nil)
	}
	return formatter.Success(value)
}
