// Package driver defines the persistence-plugin contract
// and its two implementations: internal/driver/memory and
// internal/driver/sqlite. A driver makes no policy decisions — it never
// validates documents, never modifies timestamps, never emits write
// events, and never decides accept/ignore. That is all store-layer
// policy (internal/store).
package driver

import (
	"context"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
)

// CloseOptions controls driver teardown.
type CloseOptions struct {
	// Delete, if true, also discards every stored document and config
	// key in addition to releasing in-process handles. The memory driver
	// clears its maps; the sqlite driver empties its docs and config
	// tables, and the database file and its tables remain.
	Delete bool
}

// Driver is the raw persistence plugin one Store binds to. Every method
// that takes now uses it instead of the wall clock, so the store's
// test-clock override governs expiry consistently across store and
// driver. Begin takes no now; the sqlite driver's initial sweep in Begin
// reads the wall clock.
type Driver interface {
	// Begin performs one-time initialization: ensure schema, read
	// persistent state, run an initial expiry sweep. Called exactly
	// once, before any other method.
	Begin(ctx context.Context, workspace docmodel.WorkspaceAddress) error

	// Authors returns the sorted, unique authors of currently-live
	// documents.
	Authors(ctx context.Context, now int64) ([]docmodel.AuthorAddress, error)

	// PathQuery returns sorted, unique, non-expired paths matching a
	// cleaned query. limitBytes is ignored for path queries; Limit still
	// applies.
	PathQuery(ctx context.Context, q docmodel.Query, now int64) ([]string, error)

	// DocumentQuery returns non-expired documents matching a cleaned
	// query, sorted in history order, with Limit/LimitBytes applied.
	DocumentQuery(ctx context.Context, q docmodel.Query, now int64) ([]docmodel.Document, error)

	// GetDocumentAt returns the document currently occupying a slot, if
	// any and if live. Used by the store's ingestion predecessor check;
	// expired predecessors are NOT returned (treated as absent).
	GetDocumentAt(ctx context.Context, path string, author docmodel.AuthorAddress, now int64) (docmodel.Document, bool, error)

	// UpsertDocument writes doc unconditionally for its (path, author)
	// slot, overwriting any existing document there, and returns a
	// frozen (independent, immutable) copy of what was stored.
	UpsertDocument(ctx context.Context, doc docmodel.Document) (docmodel.Document, error)

	// RemoveExpiredDocs deletes every document with DeleteAfter < now
	// and returns the count removed.
	RemoveExpiredDocs(ctx context.Context, now int64) (int, error)

	// Close releases driver handles, optionally destroying the backing
	// store.
	Close(ctx context.Context, opts CloseOptions) error

	ConfigStore
}

// ConfigStore is the untyped string-to-string per-workspace metadata
// store, exposed by both drivers and passed through by
// Store.
type ConfigStore interface {
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, bool, error)
	DeleteConfig(ctx context.Context, key string) error
	DeleteAllConfig(ctx context.Context) error
}
