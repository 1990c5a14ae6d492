package harness

import (
	"context"
	"fmt"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/store"
)

// simpleKeypair is the trivial docmodel.Keypair used by scenarios: the
// author name in the YAML step *is* the address.
type simpleKeypair struct {
	addr docmodel.AuthorAddress
}

func (k simpleKeypair) Address() docmodel.AuthorAddress { return k.addr }

// Run executes a scenario's steps against s in order, recording a trace
// of every IngestDocument/Set outcome via a temporary write-observer
// subscription, then evaluates the scenario's assertions against the
// store's final state.
func Run(ctx context.Context, s *store.Store, scenario *Scenario) (*Result, error) {
	result := NewResult()

	var seq int
	unsubscribe := s.Subscribe(func(ev docmodel.WriteEvent) {
		seq++
		result.Trace = append(result.Trace, TraceEvent{
			Seq: seq, Step: "write", Result: "Accepted",
			Path: ev.Document.Path, Author: string(ev.Document.Author),
			IsLocal: ev.IsLocal, IsLatest: ev.IsLatest, Content: ev.Document.Content,
		})
	})
	defer unsubscribe()

	if scenario.Now != 0 {
		s.SetTestClock(docmodel.Fixed(scenario.Now))
	}

	for i, step := range scenario.Steps {
		outcome, err := runStep(ctx, s, scenario.Format, step)
		if err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			continue
		}
		if outcome == store.Ignored {
			seq++
			result.Trace = append(result.Trace, TraceEvent{
				Seq: seq, Step: "write", Result: "Ignored",
				Path: step.Path, Author: step.Author,
			})
		}
	}

	docs, err := s.Documents(ctx, docmodel.Query{History: docmodel.HistoryAll})
	if err != nil {
		return nil, fmt.Errorf("harness: read final documents: %w", err)
	}
	result.Documents = docs

	for i, a := range scenario.Assertions {
		if err := checkAssertion(ctx, s, result, a); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return result, nil
}

func runStep(ctx context.Context, s *store.Store, format string, step Step) (store.IngestResult, error) {
	switch step.Kind {
	case StepKindSet:
		return s.Set(ctx, simpleKeypair{addr: docmodel.AuthorAddress(step.Author)}, store.SetInput{
			Format:      format,
			Path:        step.Path,
			Content:     step.Content,
			Timestamp:   step.Timestamp,
			DeleteAfter: step.DeleteAfter,
		})
	case StepKindIngest:
		doc := docmodel.Document{
			Format:      format,
			Workspace:   s.Workspace(),
			Path:        step.Path,
			Content:     step.Content,
			ContentHash: docmodel.ComputeContentHash(step.Content),
			Author:      docmodel.AuthorAddress(step.Author),
			Timestamp:   step.Timestamp,
			DeleteAfter: step.DeleteAfter,
			Signature:   step.Signature,
		}
		return s.IngestDocument(ctx, doc, step.IsLocal)
	default:
		return store.Ignored, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}
