// Package store implements the workspace-scoped document engine:
// ingestion with the LWW merge rule, the Set write helper (timestamp
// bumping, signing delegation), the query front-end, and store
// lifecycle.
//
// # Critical section
//
// Every accepted write passes through one mutex-guarded critical
// section: read the predecessor at the document's slot, decide
// accept/ignore, upsert, read back the new latest, and only then
// publish a write event. No suspension point may sit inside that
// section — see internal/asyncstore for the async facade that respects
// this boundary.
//
// # Convergence
//
// The store makes no accept/ignore decision that depends on arrival
// order beyond the (timestamp, signature) tiebreak comparison, so any
// two peers that ingest the same set of documents, in any order,
// converge to the same live-document set.
package store
