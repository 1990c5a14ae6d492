package cli

import (
	"context"
	"fmt"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
	"github.com/fenwick-sync/wsstore/internal/driver/sqlite"
)

// openDriver opens the sqlite database at opts.DBPath and begins it
// against opts.Workspace. wsstore-inspect talks to the driver directly
// rather than through internal/store: inspection needs no validator, and
// store.Open refuses to construct without at least one.
func openDriver(ctx context.Context, opts *RootOptions) (*sqlite.Driver, error) {
	if opts.Workspace == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	sqliteOpts := sqlite.DefaultOptions(opts.DBPath)
	drv, err := sqlite.Open(sqliteOpts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.DBPath, err)
	}
	if err := drv.Begin(ctx, docmodel.WorkspaceAddress(opts.Workspace)); err != nil {
		drv.Close(ctx, driver.CloseOptions{})
		return nil, fmt.Errorf("begin: %w", err)
	}
	return drv, nil
}
