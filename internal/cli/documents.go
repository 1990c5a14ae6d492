package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
)

// NewDocumentsCommand dumps documents matching a selector. --all
// switches from "latest per path" (the default) to every live version.
func NewDocumentsCommand(rootOpts *RootOptions) *cobra.Command {
	var path, prefix, author string
	var all bool
	var limit int
	var limitBytes int

	cmd := &cobra.Command{
		Use:           "documents",
		Short:         "Dump documents matching a selector",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := docmodel.Query{Limit: limit, LimitBytes: limitBytes}
			if path != "" {
				q.Path = &path
			}
			if prefix != "" {
				q.PathPrefix = &prefix
			}
			if author != "" {
				a := docmodel.AuthorAddress(author)
				q.Author = &a
			}
			q.History = docmodel.HistoryLatest
			if all {
				q.History = docmodel.HistoryAll
			}
			return runDocuments(rootOpts, cmd, q)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "exact path to match")
	cmd.Flags().StringVar(&prefix, "prefix", "", "path prefix to match")
	cmd.Flags().StringVar(&author, "author", "", "author address to match")
	cmd.Flags().BoolVar(&all, "all", false, "return every live version, not just the latest per path")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of documents to return (0 = unlimited)")
	cmd.Flags().IntVar(&limitBytes, "limit-bytes", 0, "stop before total content bytes would exceed this (0 = unlimited)")
	return cmd
}

func runDocuments(opts *RootOptions, cmd *cobra.Command, q docmodel.Query) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	ctx := context.Background()
	drv, err := openDriver(ctx, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer drv.Close(ctx, driver.CloseOptions{})

	q = docmodel.CleanUp(q)
	if q.IsImpossible() {
		formatter.VerboseLog("selector is impossible, returning no documents")
		return formatter.Success([]docmodel.Document{})
	}

	docs, err := drv.DocumentQuery(ctx, q, nowUnixMicro())
	if err != nil {
		return WrapExitError(ExitCommandError, "query documents", err)
	}

	formatter.VerboseLog("matched %d document(s)", len(docs))
	return formatter.Success(docs)
}
