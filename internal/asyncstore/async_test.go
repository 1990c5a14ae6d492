package asyncstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver/memory"
	"github.com/fenwick-sync/wsstore/internal/store"
)

const testWorkspace docmodel.WorkspaceAddress = "ws:test"

type passthroughValidator struct{}

func (passthroughValidator) Format() string { return "test" }
func (passthroughValidator) CheckDocumentIsValid(doc docmodel.Document, now int64) error {
	return nil
}
func (passthroughValidator) CheckWorkspaceIsValid(workspace docmodel.WorkspaceAddress) error {
	return nil
}
func (passthroughValidator) CheckTimestampIsOk(timestamp int64, deleteAfter *int64, now int64) error {
	return nil
}
func (passthroughValidator) SignDocument(kp docmodel.Keypair, unsigned docmodel.Document) (docmodel.Document, error) {
	signed := unsigned
	signed.Signature = "sig"
	return signed, nil
}

func newAsyncTestStore(t *testing.T) *AsyncStore {
	t.Helper()
	s, err := store.Open(context.Background(), memory.New(), []docmodel.Validator{passthroughValidator{}}, testWorkspace)
	require.NoError(t, err)
	a := New(s)
	t.Cleanup(func() { _ = a.Close(context.Background(), store.CloseOptions{}) })
	return a
}

func TestAsyncStore_IngestAndReadRoundTrip(t *testing.T) {
	a := newAsyncTestStore(t)
	ctx := context.Background()

	doc := docmodel.Document{
		Format: "test", Workspace: testWorkspace, Path: "/x", Content: "hi",
		ContentHash: docmodel.ComputeContentHash("hi"), Author: "author1", Timestamp: 1, Signature: "sig",
	}

	result, err := a.IngestDocument(ctx, doc, true)
	require.NoError(t, err)
	assert.Equal(t, store.Accepted, result)

	content, ok, err := a.GetContent(ctx, "/x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hi", content)
}

func TestAsyncStore_SerializesConcurrentCalls(t *testing.T) {
	a := newAsyncTestStore(t)
	ctx := context.Background()

	const n = 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			doc := docmodel.Document{
				Format: "test", Workspace: testWorkspace, Path: "/shared", Content: "v",
				ContentHash: docmodel.ComputeContentHash("v"),
				Author:      docmodel.AuthorAddress("author"),
				Timestamp:   int64(i + 1),
				Signature:   "sig",
			}
			_, err := a.IngestDocument(ctx, doc, true)
			assert.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}

	doc, ok, err := a.GetDocument(ctx, "/shared")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(n), doc.Timestamp)
}

func TestAsyncStore_ContextCancelBeforeDispatch(t *testing.T) {
	a := newAsyncTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Authors(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAsyncStore_CloseStopsWorker(t *testing.T) {
	a := newAsyncTestStore(t)
	require.NoError(t, a.Close(context.Background(), store.CloseOptions{}))
	assert.True(t, a.IsClosed())

	select {
	case <-a.done:
	case <-time.After(time.Second):
		t.Fatal("worker goroutine did not exit after Close")
	}
}
