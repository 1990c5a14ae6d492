// Command wsstore-inspect is a read-only operational tool for looking
// inside a workspace's sqlite document store without standing up a full
// peer: list paths, dump documents, list authors, read config, or force
// an expiry sweep.
package main

import (
	"os"

	"github.com/fenwick-sync/wsstore/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
