package harness

import (
	"context"
	"fmt"
	"sort"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/store"
)

// checkAssertion evaluates one Assertion against the store's current
// state, recording a failure on result if it does not hold.
func checkAssertion(ctx context.Context, s *store.Store, result *Result, a Assertion) error {
	switch a.Type {
	case AssertLiveDocument:
		return checkLiveDocument(ctx, s, result, a)
	case AssertPathSet:
		return checkPathSet(ctx, s, result, a)
	case AssertAuthorSet:
		return checkAuthorSet(ctx, s, result, a)
	case AssertTraceCount:
		return checkTraceCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func checkLiveDocument(ctx context.Context, s *store.Store, result *Result, a Assertion) error {
	doc, ok, err := s.GetDocument(ctx, a.Path)
	if err != nil {
		return err
	}
	if a.ExpectAbsent {
		if ok {
			result.AddError(fmt.Sprintf("expected %s to be absent, found content %q", a.Path, doc.Content))
		}
		return nil
	}
	if !ok {
		result.AddError(fmt.Sprintf("expected a live document at %s, found none", a.Path))
		return nil
	}
	if a.ExpectContent != nil && doc.Content != *a.ExpectContent {
		result.AddError(fmt.Sprintf("%s: expected content %q, got %q", a.Path, *a.ExpectContent, doc.Content))
	}
	return nil
}

func checkPathSet(ctx context.Context, s *store.Store, result *Result, a Assertion) error {
	paths, err := s.Paths(ctx, docmodel.Query{})
	if err != nil {
		return err
	}
	want := append([]string{}, a.ExpectPaths...)
	sort.Strings(want)
	if !equalStrings(paths, want) {
		result.AddError(fmt.Sprintf("expected paths %v, got %v", want, paths))
	}
	return nil
}

func checkAuthorSet(ctx context.Context, s *store.Store, result *Result, a Assertion) error {
	authors, err := s.Authors(ctx)
	if err != nil {
		return err
	}
	got := make([]string, len(authors))
	for i, author := range authors {
		got[i] = string(author)
	}
	want := append([]string{}, a.ExpectAuthors...)
	sort.Strings(want)
	if !equalStrings(got, want) {
		result.AddError(fmt.Sprintf("expected authors %v, got %v", want, got))
	}
	return nil
}

func checkTraceCount(result *Result, a Assertion) error {
	if len(result.Trace) != a.ExpectCount {
		result.AddError(fmt.Sprintf("expected %d trace events, got %d", a.ExpectCount, len(result.Trace)))
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
