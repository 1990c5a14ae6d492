package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
)

// lifecycle states.
const (
	stateConstructed int32 = iota
	stateOpen
	stateClosed
	stateFailedInit
)

// Store is the workspace-scoped document engine. The zero value is not
// usable; construct with Open.
type Store struct {
	mu        sync.Mutex
	drv       driver.Driver
	workspace docmodel.WorkspaceAddress
	byFormat  map[string]docmodel.Validator
	clock     *docmodel.Clock
	state     atomic.Int32

	obsMu     sync.Mutex
	observers []docmodel.WriteObserver
}

// Open constructs a Store bound to one driver, one workspace, and a set
// of validators, then begins the driver. At least one validator is
// required, and at least one validator must accept the workspace
// address — otherwise Open fails with the first rejecting validator's
// *docmodel.ValidationError.
func Open(ctx context.Context, drv driver.Driver, validators []docmodel.Validator, workspace docmodel.WorkspaceAddress) (*Store, error) {
	if len(validators) == 0 {
		return nil, docmodel.NewValidationError(docmodel.ErrCodeConstruction, "at least one validator is required")
	}

	byFormat := make(map[string]docmodel.Validator, len(validators))
	var firstErr error
	accepted := false
	for _, v := range validators {
		byFormat[v.Format()] = v
		if err := v.CheckWorkspaceIsValid(workspace); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		accepted = true
	}
	if !accepted {
		if firstErr != nil {
			return nil, firstErr
		}
		return nil, docmodel.NewValidationError(docmodel.ErrCodeConstruction, "no validator accepted the workspace address")
	}

	s := &Store{
		drv:       drv,
		workspace: workspace,
		byFormat:  byFormat,
		clock:     docmodel.NewClock(),
	}

	if err := drv.Begin(ctx, workspace); err != nil {
		s.state.Store(stateFailedInit)
		return nil, fmt.Errorf("store: begin driver: %w", err)
	}

	s.state.Store(stateOpen)
	return s, nil
}

// Workspace returns the workspace this store is bound to.
func (s *Store) Workspace() docmodel.WorkspaceAddress {
	return s.workspace
}

// IsClosed reports whether the store has been closed.
func (s *Store) IsClosed() bool {
	return s.state.Load() == stateClosed
}

// checkOpen returns a *docmodel.ClosedError for op if the store is not
// open, nil otherwise.
func (s *Store) checkOpen(op string) error {
	if s.state.Load() != stateOpen {
		return docmodel.NewClosedError(op)
	}
	return nil
}

// SetTestClock installs a test-clock override used instead of the wall
// clock for every time-dependent decision.
// Passing nil reverts to the wall clock. The override is per-store, not
// global.
func (s *Store) SetTestClock(now func() int64) {
	s.clock.SetOverride(now)
}

// now returns the instant this store currently uses for time-dependent
// decisions.
func (s *Store) now() int64 {
	return s.clock.Now()
}

// CloseOptions controls store teardown; re-exported so callers don't
// need to import internal/driver directly.
type CloseOptions = driver.CloseOptions

// Close marks the store closed and tears down the driver. Calling Close
// on an already-closed store is a no-op that returns nil: IsClosed() is
// the cheap idempotency check callers are expected to use before
// deciding whether a second Close even matters.
func (s *Store) Close(ctx context.Context, opts CloseOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Load() == stateClosed {
		return nil
	}
	if s.state.Load() != stateOpen {
		// failed-init: nothing to tear down.
		s.state.Store(stateClosed)
		return nil
	}

	s.state.Store(stateClosed)
	if err := s.drv.Close(ctx, opts); err != nil {
		return fmt.Errorf("store: close driver: %w", err)
	}
	return nil
}

// Subscribe registers fn to receive a docmodel.WriteEvent after every
// accepted write. The returned function unregisters it.
// A panicking observer is isolated (recovered) so it cannot corrupt
// delivery to other subscribers or to the store itself.
func (s *Store) Subscribe(fn docmodel.WriteObserver) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.observers = append(s.observers, fn)
	idx := len(s.observers) - 1

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		if idx < len(s.observers) {
			s.observers[idx] = nil
		}
	}
}

// publish delivers a write event to every live subscriber, synchronously
// and in registration order. Must be called outside the critical
// section's driver calls but before IngestDocument returns.
func (s *Store) publish(ev docmodel.WriteEvent) {
	s.obsMu.Lock()
	observers := make([]docmodel.WriteObserver, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()

	for _, fn := range observers {
		if fn == nil {
			continue
		}
		s.safeNotify(fn, ev)
	}
}

// safeNotify isolates a single observer's panic from the rest.
func (s *Store) safeNotify(fn docmodel.WriteObserver, ev docmodel.WriteEvent) {
	defer func() { _ = recover() }()
	fn(ev)
}

// sortedAuthors returns a copy of authors sorted ascending. Store.Authors
// applies it to the driver's result.
func sortedAuthors(authors []docmodel.AuthorAddress) []docmodel.AuthorAddress {
	out := append([]docmodel.AuthorAddress{}, authors...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
