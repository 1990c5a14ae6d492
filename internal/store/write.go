package store

import (
	"context"
	"fmt"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
)

// IngestResult is the outcome of IngestDocument/Set: Accepted or Ignored.
// Neither is an error — Ignored is ordinary flow, not a
// failure.
type IngestResult int

const (
	// Ignored means the document's slot already holds a predecessor
	// that is greater-or-equal under (timestamp, signature); no write
	// occurred and no event was published.
	Ignored IngestResult = iota
	// Accepted means driver.UpsertDocument was called and a write event
	// was published.
	Accepted
)

func (r IngestResult) String() string {
	if r == Accepted {
		return "Accepted"
	}
	return "Ignored"
}

// IngestDocument validates and merges a document into the store
//. isLocal is threaded through to the resulting write
// event only — it has no effect on the merge decision.
func (s *Store) IngestDocument(ctx context.Context, doc docmodel.Document, isLocal bool) (IngestResult, error) {
	if err := s.checkOpen("IngestDocument"); err != nil {
		return Ignored, err
	}

	validator, ok := s.byFormat[doc.Format]
	if !ok {
		return Ignored, docmodel.NewDocumentValidationError(
			docmodel.ErrCodeUnknownFormat, fmt.Sprintf("no validator registered for format %q", doc.Format), doc)
	}

	now := s.now()

	if err := validator.CheckDocumentIsValid(doc, now); err != nil {
		return Ignored, err
	}
	if doc.Workspace != s.workspace {
		return Ignored, docmodel.NewDocumentValidationError(
			docmodel.ErrCodeWorkspaceMismatch,
			fmt.Sprintf("document workspace %q does not match store workspace %q", doc.Workspace, s.workspace),
			doc)
	}

	s.mu.Lock()
	result, event, err := s.acceptOrIgnoreLocked(ctx, doc, isLocal, now)
	s.mu.Unlock()
	if err != nil {
		return Ignored, err
	}

	if result == Accepted {
		s.publish(event)
	}
	return result, nil
}

// acceptOrIgnoreLocked is the ingest critical section: it must run
// under s.mu, uninterrupted, from predecessor read through the
// post-upsert latest read. Must be called with s.mu held.
func (s *Store) acceptOrIgnoreLocked(ctx context.Context, doc docmodel.Document, isLocal bool, now int64) (IngestResult, docmodel.WriteEvent, error) {
	predecessor, hasPredecessor, err := s.drv.GetDocumentAt(ctx, doc.Path, doc.Author, now)
	if err != nil {
		return Ignored, docmodel.WriteEvent{}, fmt.Errorf("store: ingest: read predecessor: %w", err)
	}

	// GetDocumentAt already treats an expired predecessor as absent
	//), so hasPredecessor here already
	// reflects that.
	if hasPredecessor && docmodel.TimestampSigLessEq(doc.Timestamp, doc.Signature, predecessor.Timestamp, predecessor.Signature) {
		return Ignored, docmodel.WriteEvent{}, nil
	}

	stored, err := s.drv.UpsertDocument(ctx, doc)
	if err != nil {
		return Ignored, docmodel.WriteEvent{}, fmt.Errorf("store: ingest: upsert: %w", err)
	}

	latest, _, err := s.latestAtLocked(ctx, doc.Path, now)
	if err != nil {
		return Ignored, docmodel.WriteEvent{}, fmt.Errorf("store: ingest: read latest: %w", err)
	}
	isLatest := latest.Author == stored.Author && latest.Timestamp == stored.Timestamp && latest.Signature == stored.Signature

	return Accepted, docmodel.WriteEvent{
		Kind:     docmodel.WriteEventDocumentWrite,
		IsLocal:  isLocal,
		IsLatest: isLatest,
		Document: stored,
	}, nil
}

// SetInput describes a locally-authored document.
// Timestamp of 0 requests the automatic bump behavior.
type SetInput struct {
	Format      string
	Path        string
	Content     string
	Timestamp   int64
	DeleteAfter *int64
}

// Set assembles, times, and signs a locally-authored document, then
// ingests it as a local write. Without the bump, a local author who
// writes twice within one clock tick could lose their own second write
// to a peer's higher-timestamp copy of the same slot; bumping
// guarantees the local author's latest intent always supersedes.
func (s *Store) Set(ctx context.Context, kp docmodel.Keypair, input SetInput) (IngestResult, error) {
	if err := s.checkOpen("Set"); err != nil {
		return Ignored, err
	}

	validator, ok := s.byFormat[input.Format]
	if !ok {
		return Ignored, docmodel.NewValidationError(docmodel.ErrCodeUnknownFormat,
			fmt.Sprintf("no validator registered for format %q", input.Format))
	}

	now := s.now()

	shouldBump := input.Timestamp == 0
	timestamp := input.Timestamp
	if shouldBump {
		timestamp = now
	} else if err := validator.CheckTimestampIsOk(timestamp, input.DeleteAfter, now); err != nil {
		return Ignored, err
	}

	unsigned := docmodel.Document{
		Format:      input.Format,
		Workspace:   s.workspace,
		Path:        docmodel.NormalizePath(input.Path),
		Content:     input.Content,
		ContentHash: docmodel.ComputeContentHash(input.Content),
		Author:      kp.Address(),
		Timestamp:   timestamp,
		DeleteAfter: input.DeleteAfter,
	}

	if shouldBump {
		var lifespan *int64
		if unsigned.DeleteAfter != nil {
			l := *unsigned.DeleteAfter - unsigned.Timestamp
			lifespan = &l
		}

		s.mu.Lock()
		latest, hasLatest, err := s.latestAtLocked(ctx, unsigned.Path, now)
		s.mu.Unlock()
		if err != nil {
			return Ignored, fmt.Errorf("store: set: read latest: %w", err)
		}
		if hasLatest && latest.Timestamp+1 > unsigned.Timestamp {
			unsigned.Timestamp = latest.Timestamp + 1
		}
		if lifespan != nil {
			bumped := unsigned.Timestamp + *lifespan
			unsigned.DeleteAfter = &bumped
		}
	}

	signed, err := validator.SignDocument(kp, unsigned)
	if err != nil {
		return Ignored, err
	}

	return s.IngestDocument(ctx, signed, true)
}

// latestAtLocked returns the (timestamp, signature)-max live document at
// path, if any. Must be called with s.mu held.
func (s *Store) latestAtLocked(ctx context.Context, path string, now int64) (docmodel.Document, bool, error) {
	p := path
	docs, err := s.drv.DocumentQuery(ctx, docmodel.CleanUp(docmodel.Query{
		Path:    &p,
		History: docmodel.HistoryLatest,
		Limit:   1,
	}), now)
	if err != nil {
		return docmodel.Document{}, false, err
	}
	if len(docs) == 0 {
		return docmodel.Document{}, false, nil
	}
	return docs[0], true, nil
}
