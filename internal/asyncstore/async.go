package asyncstore

import (
	"context"
	"fmt"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/store"
)

// AsyncStore is the asynchronous facade over a *store.Store. Every
// exported method submits a job to a single worker goroutine and blocks
// (or returns ctx.Err()) until it completes, so calls against one
// AsyncStore are serialized exactly as they would be against the
// underlying synchronous store, while still presenting a suspension
// point — a context-cancellable await — at every call.
type AsyncStore struct {
	store *store.Store
	queue *jobQueue
	done  chan struct{}
}

// New starts the worker goroutine over an already-open *store.Store. The
// caller retains ownership of s; Close on the AsyncStore also closes s.
func New(s *store.Store) *AsyncStore {
	a := &AsyncStore{
		store: s,
		queue: newJobQueue(),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// run is the single worker loop: dequeue one job, execute it to
// completion, repeat. No suspension point exists between a job starting
// and finishing, so the store's own critical section is never observed
// half-executed from this facade.
func (a *AsyncStore) run() {
	defer close(a.done)
	for {
		j, ok := a.queue.TryDequeue()
		if ok {
			j.run()
			continue
		}
		if a.queue.closedAndEmpty() {
			return
		}
		<-a.queue.Wait()
	}
}

// submit enqueues fn and waits for it to run, respecting ctx
// cancellation while waiting. A context already cancelled at submission
// returns ctx.Err() without enqueuing fn. A cancellation while waiting
// returns ctx.Err() to the caller, but an enqueued fn still runs to
// completion on the worker, so the store's critical section is never
// left half-executed by a cancelled caller.
func submit[T any](ctx context.Context, a *AsyncStore, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	result := make(chan struct {
		v   T
		err error
	}, 1)

	ok := a.queue.Enqueue(job{run: func() {
		v, err := fn()
		result <- struct {
			v   T
			err error
		}{v, err}
	}})
	if !ok {
		return zero, fmt.Errorf("asyncstore: store is shutting down")
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-result:
		return r.v, r.err
	}
}

// IngestDocument submits store.IngestDocument to the worker.
func (a *AsyncStore) IngestDocument(ctx context.Context, doc docmodel.Document, isLocal bool) (store.IngestResult, error) {
	return submit(ctx, a, func() (store.IngestResult, error) {
		return a.store.IngestDocument(ctx, doc, isLocal)
	})
}

// Set submits store.Set to the worker.
func (a *AsyncStore) Set(ctx context.Context, kp docmodel.Keypair, input store.SetInput) (store.IngestResult, error) {
	return submit(ctx, a, func() (store.IngestResult, error) {
		return a.store.Set(ctx, kp, input)
	})
}

// Authors submits store.Authors to the worker.
func (a *AsyncStore) Authors(ctx context.Context) ([]docmodel.AuthorAddress, error) {
	return submit(ctx, a, func() ([]docmodel.AuthorAddress, error) {
		return a.store.Authors(ctx)
	})
}

// Paths submits store.Paths to the worker.
func (a *AsyncStore) Paths(ctx context.Context, q docmodel.Query) ([]string, error) {
	return submit(ctx, a, func() ([]string, error) {
		return a.store.Paths(ctx, q)
	})
}

// Documents submits store.Documents to the worker.
func (a *AsyncStore) Documents(ctx context.Context, q docmodel.Query) ([]docmodel.Document, error) {
	return submit(ctx, a, func() ([]docmodel.Document, error) {
		return a.store.Documents(ctx, q)
	})
}

// Contents submits store.Contents to the worker.
func (a *AsyncStore) Contents(ctx context.Context, q docmodel.Query) ([]string, error) {
	return submit(ctx, a, func() ([]string, error) {
		return a.store.Contents(ctx, q)
	})
}

// GetDocument submits store.GetDocument to the worker.
func (a *AsyncStore) GetDocument(ctx context.Context, path string) (docmodel.Document, bool, error) {
	type pair struct {
		doc docmodel.Document
		ok  bool
	}
	p, err := submit(ctx, a, func() (pair, error) {
		doc, ok, err := a.store.GetDocument(ctx, path)
		return pair{doc, ok}, err
	})
	return p.doc, p.ok, err
}

// GetContent submits store.GetContent to the worker.
func (a *AsyncStore) GetContent(ctx context.Context, path string) (string, bool, error) {
	type pair struct {
		content string
		ok      bool
	}
	p, err := submit(ctx, a, func() (pair, error) {
		content, ok, err := a.store.GetContent(ctx, path)
		return pair{content, ok}, err
	})
	return p.content, p.ok, err
}

// Subscribe registers a write observer directly against the underlying
// store. Subscription is not itself a suspending operation, so it
// bypasses the job queue.
func (a *AsyncStore) Subscribe(fn docmodel.WriteObserver) (unsubscribe func()) {
	return a.store.Subscribe(fn)
}

// Close submits store.Close to the worker, then stops accepting further
// jobs and waits for the worker goroutine to exit.
func (a *AsyncStore) Close(ctx context.Context, opts store.CloseOptions) error {
	_, err := submit(ctx, a, func() (struct{}, error) {
		return struct{}{}, a.store.Close(ctx, opts)
	})
	a.queue.Close()
	<-a.done
	return err
}

// IsClosed reports whether the underlying store has been closed. Safe to
// call without going through the worker: it only reads an atomic flag.
func (a *AsyncStore) IsClosed() bool {
	return a.store.IsClosed()
}
