package store

import (
	"context"
	"fmt"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
)

// Authors returns every author address with at least one currently-live
// document in the workspace, sorted ascending.
func (s *Store) Authors(ctx context.Context) ([]docmodel.AuthorAddress, error) {
	if err := s.checkOpen("Authors"); err != nil {
		return nil, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	authors, err := s.drv.Authors(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("store: authors: %w", err)
	}
	return sortedAuthors(authors), nil
}

// Paths runs q against the path namespace and returns the matching
// distinct paths. An impossible query (docmodel.CleanUp
// detected a contradiction) returns an empty slice, not an error.
func (s *Store) Paths(ctx context.Context, q docmodel.Query) ([]string, error) {
	if err := s.checkOpen("Paths"); err != nil {
		return nil, err
	}
	cleaned := docmodel.CleanUp(q)
	if cleaned.IsImpossible() {
		return nil, nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.drv.PathQuery(ctx, cleaned, now)
	if err != nil {
		return nil, fmt.Errorf("store: paths: %w", err)
	}
	return paths, nil
}

// Documents runs q and returns the matching documents in history order,
// with the query's history fold (latest-per-path vs all) applied. An
// impossible query returns an empty slice, not an error.
func (s *Store) Documents(ctx context.Context, q docmodel.Query) ([]docmodel.Document, error) {
	if err := s.checkOpen("Documents"); err != nil {
		return nil, err
	}
	cleaned := docmodel.CleanUp(q)
	if cleaned.IsImpossible() {
		return nil, nil
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.drv.DocumentQuery(ctx, cleaned, now)
	if err != nil {
		return nil, fmt.Errorf("store: documents: %w", err)
	}
	return docs, nil
}

// Contents runs q and returns only the content field of each matching
// document, in the same order Documents would return them. This is a
// convenience projection, not a distinct driver path.
func (s *Store) Contents(ctx context.Context, q docmodel.Query) ([]string, error) {
	docs, err := s.Documents(ctx, q)
	if err != nil {
		return nil, err
	}
	contents := make([]string, len(docs))
	for i, d := range docs {
		contents[i] = d.Content
	}
	return contents, nil
}

// GetDocument returns the single latest live document at path, if any
//. The bool is false when no live document exists
// at path under any author.
func (s *Store) GetDocument(ctx context.Context, path string) (docmodel.Document, bool, error) {
	if err := s.checkOpen("GetDocument"); err != nil {
		return docmodel.Document{}, false, err
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latestAtLocked(ctx, docmodel.NormalizePath(path), now)
}

// GetContent returns the content of the single latest live document at
// path, if any.
func (s *Store) GetContent(ctx context.Context, path string) (string, bool, error) {
	doc, ok, err := s.GetDocument(ctx, path)
	if err != nil || !ok {
		return "", ok, err
	}
	return doc.Content, true, nil
}
