package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
	"github.com/fenwick-sync/wsstore/internal/driver/memory"
	"github.com/fenwick-sync/wsstore/internal/driver/sqlite"
)

const testWorkspace docmodel.WorkspaceAddress = "ws:test"

// driverFactory builds a fresh driver.Driver for one test. Store tests
// run against both backends so parity holds across the driver contract.
type driverFactory struct {
	name string
	new  func(t *testing.T) driver.Driver
}

func driverFactories(t *testing.T) []driverFactory {
	return []driverFactory{
		{name: "memory", new: func(t *testing.T) driver.Driver { return memory.New() }},
		{name: "sqlite", new: func(t *testing.T) driver.Driver {
			dir := t.TempDir()
			opts := sqlite.DefaultOptions(filepath.Join(dir, "store.db"))
			drv, err := sqlite.Open(opts)
			require.NoError(t, err)
			t.Cleanup(func() { _ = drv.Close(context.Background(), driver.CloseOptions{}) })
			return drv
		}},
	}
}

func openTestStore(t *testing.T, drv driver.Driver) *Store {
	t.Helper()
	s, err := Open(context.Background(), drv, []docmodel.Validator{newTestValidator(testWorkspace)}, testWorkspace)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background(), CloseOptions{}) })
	return s
}

func forEachDriver(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, f := range driverFactories(t) {
		f := f
		t.Run(f.name, func(t *testing.T) {
			s := openTestStore(t, f.new(t))
			fn(t, s)
		})
	}
}

func TestOpen_RequiresAtLeastOneValidator(t *testing.T) {
	_, err := Open(context.Background(), memory.New(), nil, testWorkspace)
	require.Error(t, err)
	assert.True(t, docmodel.IsValidationError(err))
}

func TestOpen_RejectsWhenNoValidatorAcceptsWorkspace(t *testing.T) {
	_, err := Open(context.Background(), memory.New(), []docmodel.Validator{newTestValidator("ws:other")}, testWorkspace)
	require.Error(t, err)
	assert.True(t, docmodel.IsValidationError(err))
}

// TestIngest_LWWTiebreak: two documents for the same slot, identical
// timestamps, signatures "A..." and "B...". Regardless of ingest order,
// the stored document's signature begins with "B".
func TestIngest_LWWTiebreak(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		a := ingestRaw(testWorkspace, "/slot", "author1", "from-a", 100, "Aaaa", nil)
		b := ingestRaw(testWorkspace, "/slot", "author1", "from-b", 100, "Bbbb", nil)

		result, err := s.IngestDocument(ctx, a, false)
		require.NoError(t, err)
		assert.Equal(t, Accepted, result)

		result, err = s.IngestDocument(ctx, b, false)
		require.NoError(t, err)
		assert.Equal(t, Accepted, result)

		doc, ok, err := s.GetDocument(ctx, "/slot")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Bbbb", doc.Signature)
	})

	// Reverse order: same winner.
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		a := ingestRaw(testWorkspace, "/slot", "author1", "from-a", 100, "Aaaa", nil)
		b := ingestRaw(testWorkspace, "/slot", "author1", "from-b", 100, "Bbbb", nil)

		_, err := s.IngestDocument(ctx, b, false)
		require.NoError(t, err)
		_, err = s.IngestDocument(ctx, a, false)
		require.NoError(t, err)

		doc, ok, err := s.GetDocument(ctx, "/slot")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Bbbb", doc.Signature)
	})
}

// TestSet_EmptyContentWins: a later empty-content write shadows an earlier
// nonempty one at the same slot.
func TestSet_EmptyContentWins(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		k := kp("author1")

		_, err := s.Set(ctx, k, SetInput{Format: "test", Path: "/x", Content: "hello", Timestamp: 100})
		require.NoError(t, err)
		_, err = s.Set(ctx, k, SetInput{Format: "test", Path: "/x", Content: "", Timestamp: 200})
		require.NoError(t, err)

		content, ok, err := s.GetContent(ctx, "/x")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "", content)

		paths, err := s.Paths(ctx, docmodel.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{"/x"}, paths)

		sizeGt := int64(0)
		paths, err = s.Paths(ctx, docmodel.Query{ContentSizeGt: &sizeGt})
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

// TestIngest_EphemeralExpiry: an ephemeral document disappears from
// reads, and from Authors, once expired.
func TestIngest_EphemeralExpiry(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		deleteAfter := int64(200)
		doc := ingestRaw(testWorkspace, "/t!", "author1", "c", 100, "sigA", &deleteAfter)

		result, err := s.IngestDocument(ctx, doc, false)
		require.NoError(t, err)
		assert.Equal(t, Accepted, result)

		s.SetTestClock(docmodel.Fixed(150))
		_, ok, err := s.GetDocument(ctx, "/t!")
		require.NoError(t, err)
		assert.True(t, ok)

		s.SetTestClock(docmodel.Fixed(250))
		_, ok, err = s.GetDocument(ctx, "/t!")
		require.NoError(t, err)
		assert.False(t, ok)

		authors, err := s.Authors(ctx)
		require.NoError(t, err)
		assert.NotContains(t, authors, docmodel.AuthorAddress("author1"))
	})
}

// TestSet_BumpPreservesLifespan: bumping a timestamp forward
// preserves the originally-requested lifespan.
func TestSet_BumpPreservesLifespan(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		s.SetTestClock(docmodel.Fixed(500))

		pre := ingestRaw(testWorkspace, "/x", "author2", "pre", 1000, "sigPre", nil)
		_, err := s.IngestDocument(ctx, pre, false)
		require.NoError(t, err)

		const day = int64(86400_000_000)
		k := kp("author1")
		da := s.now() + day
		_, err = s.Set(ctx, k, SetInput{Format: "test", Path: "/x", Content: "c", DeleteAfter: &da})
		require.NoError(t, err)

		doc, ok, err := s.GetDocument(ctx, "/x")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(1001), doc.Timestamp)
		require.NotNil(t, doc.DeleteAfter)
		assert.Equal(t, int64(1001+day), *doc.DeleteAfter)
	})
}

// TestDocuments_LimitBytesStopsBefore: documents with content sizes
// [0,1,2,0,3] in history order; limitBytes:3 keeps the first three
// (0+1+2=3), excluding the trailing document that would land exactly
// at the limit.
func TestDocuments_LimitBytesStopsBefore(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sizes := []int{0, 1, 2, 0, 3}
		// History order is path ASC, timestamp DESC, signature DESC; use
		// one path, one author per doc, descending timestamps so sort
		// order matches slice order.
		ts := int64(len(sizes))
		for i, n := range sizes {
			content := make([]byte, n)
			for j := range content {
				content[j] = 'x'
			}
			author := docmodel.AuthorAddress("author" + string(rune('A'+i)))
			doc := ingestRaw(testWorkspace, "/p", author, string(content), ts-int64(i), "sig", nil)
			_, err := s.IngestDocument(ctx, doc, false)
			require.NoError(t, err)
		}

		docs, err := s.Documents(ctx, docmodel.Query{
			Path:       strPtr("/p"),
			History:    docmodel.HistoryAll,
			LimitBytes: 3,
		})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, 0, len(docs[0].Content))
		assert.Equal(t, 1, len(docs[1].Content))
		assert.Equal(t, 2, len(docs[2].Content))
	})
}

func strPtr(s string) *string { return &s }

// TestIngest_CrossWorkspaceRejection: a validly-formed document whose
// workspace differs from the store's is rejected with a ValidationError.
func TestIngest_CrossWorkspaceRejection(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		doc := ingestRaw("ws:other", "/x", "author1", "c", 100, "sig", nil)

		result, err := s.IngestDocument(ctx, doc, false)
		require.Error(t, err)
		assert.True(t, docmodel.IsValidationError(err))
		assert.Equal(t, Ignored, result)
	})
}

// TestIngest_SlotUniqueness: at most one document per (path, author)
// after any prefix of operations.
func TestIngest_SlotUniqueness(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		for ts := int64(1); ts <= 5; ts++ {
			doc := ingestRaw(testWorkspace, "/x", "author1", "v", ts, "sig", nil)
			_, err := s.IngestDocument(ctx, doc, false)
			require.NoError(t, err)
		}
		docs, err := s.Documents(ctx, docmodel.Query{History: docmodel.HistoryAll})
		require.NoError(t, err)
		assert.Len(t, docs, 1)
		assert.Equal(t, int64(5), docs[0].Timestamp)
	})
}

// TestIngest_Idempotence: ingesting the same document twice has the same
// effect as once; the second ingest returns Ignored.
func TestIngest_Idempotence(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		doc := ingestRaw(testWorkspace, "/x", "author1", "v", 100, "sig", nil)

		result, err := s.IngestDocument(ctx, doc, false)
		require.NoError(t, err)
		assert.Equal(t, Accepted, result)

		result, err = s.IngestDocument(ctx, doc, false)
		require.NoError(t, err)
		assert.Equal(t, Ignored, result)
	})
}

func TestClose_PostCloseOperationsFail(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.Close(ctx, CloseOptions{}))
		assert.True(t, s.IsClosed())

		_, err := s.Authors(ctx)
		assert.True(t, docmodel.IsClosedError(err))

		doc := ingestRaw(testWorkspace, "/x", "author1", "v", 100, "sig", nil)
		_, err = s.IngestDocument(ctx, doc, false)
		assert.True(t, docmodel.IsClosedError(err))

		// A second close is a no-op, not an error.
		assert.NoError(t, s.Close(ctx, CloseOptions{}))
	})
}

func TestSubscribe_PublishesOnAcceptNotOnIgnore(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var events []docmodel.WriteEvent
		unsubscribe := s.Subscribe(func(ev docmodel.WriteEvent) {
			events = append(events, ev)
		})
		defer unsubscribe()

		doc := ingestRaw(testWorkspace, "/x", "author1", "v", 100, "sig", nil)
		_, err := s.IngestDocument(ctx, doc, true)
		require.NoError(t, err)

		// Same document again: ignored, no second event.
		_, err = s.IngestDocument(ctx, doc, true)
		require.NoError(t, err)

		require.Len(t, events, 1)
		assert.True(t, events[0].IsLocal)
		assert.True(t, events[0].IsLatest)
		assert.Equal(t, docmodel.WriteEventDocumentWrite, events[0].Kind)
	})
}

func TestSubscribe_PanicIsolatedFromOtherObservers(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		var secondCalled bool
		s.Subscribe(func(ev docmodel.WriteEvent) { panic("boom") })
		s.Subscribe(func(ev docmodel.WriteEvent) { secondCalled = true })

		doc := ingestRaw(testWorkspace, "/x", "author1", "v", 100, "sig", nil)
		result, err := s.IngestDocument(ctx, doc, false)
		require.NoError(t, err)
		assert.Equal(t, Accepted, result)
		assert.True(t, secondCalled)
	})
}

func TestConfig_SetGetDeletePassThrough(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		_, ok, err := s.GetConfig(ctx, "peer.limit")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SetConfig(ctx, "peer.limit", "10"))
		val, ok, err := s.GetConfig(ctx, "peer.limit")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "10", val)

		require.NoError(t, s.DeleteConfig(ctx, "peer.limit"))
		_, ok, err = s.GetConfig(ctx, "peer.limit")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestConfig_DeleteAll(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		require.NoError(t, s.SetConfig(ctx, "a", "1"))
		require.NoError(t, s.SetConfig(ctx, "b", "2"))
		require.NoError(t, s.DeleteAllConfig(ctx))

		_, ok, err := s.GetConfig(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
		_, ok, err = s.GetConfig(ctx, "b")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestConfig_ClosedStoreRejects(t *testing.T) {
	forEachDriver(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.Close(ctx, CloseOptions{}))

		_, _, err := s.GetConfig(ctx, "a")
		assert.True(t, docmodel.IsClosedError(err))
		err = s.SetConfig(ctx, "a", "1")
		assert.True(t, docmodel.IsClosedError(err))
	})
}

