// Package memory implements an in-memory driver.Driver: a two-level
// map[path]map[author]Document guarded by a RWMutex, keyed by the
// (path, author) slot, with every document deep-copied on the way in
// and out so no caller can mutate storage through an aliased pointer.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
)

// Driver is the in-memory implementation of driver.Driver. The zero
// value is not usable; construct with New.
type Driver struct {
	mu        sync.RWMutex
	workspace docmodel.WorkspaceAddress
	docs      map[string]map[docmodel.AuthorAddress]docmodel.Document
	config    map[string]string
	began     bool
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{
		docs:   make(map[string]map[docmodel.AuthorAddress]docmodel.Document),
		config: make(map[string]string),
	}
}

var _ driver.Driver = (*Driver)(nil)

// Begin records the workspace this driver is bound to. Never fails —
// there is no schema to create and no file to open.
func (d *Driver) Begin(ctx context.Context, workspace docmodel.WorkspaceAddress) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workspace = workspace
	d.began = true
	return nil
}

// Authors returns the sorted, unique authors of live documents.
func (d *Driver) Authors(ctx context.Context, now int64) ([]docmodel.AuthorAddress, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[docmodel.AuthorAddress]struct{})
	for _, byAuthor := range d.docs {
		for author, doc := range byAuthor {
			if doc.IsLive(now) {
				seen[author] = struct{}{}
			}
		}
	}
	out := make([]docmodel.AuthorAddress, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// candidatePaths returns the set of paths to scan for a query,
// optimized to a single path when query.Path pins one exactly.
func (d *Driver) candidatePaths(q docmodel.Query) []string {
	if q.Path != nil {
		if _, ok := d.docs[*q.Path]; !ok {
			return nil
		}
		return []string{*q.Path}
	}
	paths := make([]string, 0, len(d.docs))
	for p := range d.docs {
		paths = append(paths, p)
	}
	return paths
}

// candidateDocuments gathers every live document across the candidate
// paths for q, applying the history fold (latest-per-path vs all) before
// the predicate.
func (d *Driver) candidateDocuments(q docmodel.Query, now int64) []docmodel.Document {
	var out []docmodel.Document
	for _, path := range d.candidatePaths(q) {
		byAuthor := d.docs[path]
		var live []docmodel.Document
		for _, doc := range byAuthor {
			if doc.IsLive(now) {
				live = append(live, doc)
			}
		}
		if len(live) == 0 {
			continue
		}
		sort.Slice(live, func(i, j int) bool { return docmodel.HistoryLess(live[i], live[j]) })
		if q.EffectiveHistory() == docmodel.HistoryLatest {
			live = live[:1]
		}
		out = append(out, live...)
	}
	return out
}

// PathQuery returns sorted, unique, non-expired paths matching q.
func (d *Driver) PathQuery(ctx context.Context, q docmodel.Query, now int64) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if q.IsImpossible() {
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	for _, doc := range d.candidateDocuments(q, now) {
		if docmodel.MatchesPredicate(doc, q) {
			seen[doc.Path] = struct{}{}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	if q.Limit > 0 && len(paths) > q.Limit {
		paths = paths[:q.Limit]
	}
	return paths, nil
}

// DocumentQuery returns matching documents in history order with
// Limit/LimitBytes applied.
func (d *Driver) DocumentQuery(ctx context.Context, q docmodel.Query, now int64) ([]docmodel.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if q.IsImpossible() {
		return []docmodel.Document{}, nil
	}

	var matched []docmodel.Document
	for _, doc := range d.candidateDocuments(q, now) {
		if docmodel.MatchesPredicate(doc, q) {
			matched = append(matched, doc.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool { return docmodel.HistoryLess(matched[i], matched[j]) })

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	if q.LimitBytes > 0 {
		matched = docmodel.ApplyLimitBytes(matched, q.LimitBytes)
	}
	if matched == nil {
		matched = []docmodel.Document{}
	}
	return matched, nil
}

// GetDocumentAt returns the live document at a slot, if any.
func (d *Driver) GetDocumentAt(ctx context.Context, path string, author docmodel.AuthorAddress, now int64) (docmodel.Document, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byAuthor, ok := d.docs[path]
	if !ok {
		return docmodel.Document{}, false, nil
	}
	doc, ok := byAuthor[author]
	if !ok || !doc.IsLive(now) {
		return docmodel.Document{}, false, nil
	}
	return doc.Clone(), true, nil
}

// UpsertDocument overwrites the document at doc's slot unconditionally.
func (d *Driver) UpsertDocument(ctx context.Context, doc docmodel.Document) (docmodel.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	frozen := doc.Clone()
	byAuthor, ok := d.docs[doc.Path]
	if !ok {
		byAuthor = make(map[docmodel.AuthorAddress]docmodel.Document)
		d.docs[doc.Path] = byAuthor
	}
	byAuthor[doc.Author] = frozen
	return frozen.Clone(), nil
}

// RemoveExpiredDocs deletes every document with DeleteAfter < now.
func (d *Driver) RemoveExpiredDocs(ctx context.Context, now int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for path, byAuthor := range d.docs {
		for author, doc := range byAuthor {
			if doc.IsExpired(now) {
				delete(byAuthor, author)
				removed++
			}
		}
		if len(byAuthor) == 0 {
			delete(d.docs, path)
		}
	}
	return removed, nil
}

// Close releases the driver. Delete clears all in-memory state; without
// it the maps are left as-is (there is nothing else to release).
func (d *Driver) Close(ctx context.Context, opts driver.CloseOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if opts.Delete {
		d.docs = make(map[string]map[docmodel.AuthorAddress]docmodel.Document)
		d.config = make(map[string]string)
	}
	return nil
}

// SetConfig sets a per-workspace metadata key.
func (d *Driver) SetConfig(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config[key] = value
	return nil
}

// GetConfig reads a per-workspace metadata key.
func (d *Driver) GetConfig(ctx context.Context, key string) (string, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.config[key]
	return v, ok, nil
}

// DeleteConfig removes a single metadata key.
func (d *Driver) DeleteConfig(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.config, key)
	return nil
}

// DeleteAllConfig clears all metadata.
func (d *Driver) DeleteAllConfig(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = make(map[string]string)
	return nil
}
