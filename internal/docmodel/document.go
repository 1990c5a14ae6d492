package docmodel

import (
	"crypto/sha256"
	"encoding/base32"

	"golang.org/x/text/unicode/norm"
)

// AuthorAddress identifies the keypair that authored a document.
// A distinct type (not bare string) so driver and query code cannot
// accidentally compare a path to an author.
type AuthorAddress string

// WorkspaceAddress identifies the workspace a document belongs to.
type WorkspaceAddress string

// Document is an immutable, signed record addressed by (Path, Author)
// within a Workspace. Once accepted by a store it is never mutated;
// a later write to the same slot replaces it wholesale, it does not
// edit it in place.
type Document struct {
	Format      string
	Workspace   WorkspaceAddress
	Path        string
	Content     string
	ContentHash string
	Author      AuthorAddress
	Timestamp   int64
	DeleteAfter *int64
	Signature   string
}

// Slot is the logical coordinate (Path, Author) a document occupies.
// At most one document exists per slot in a driver's storage.
type Slot struct {
	Path   string
	Author AuthorAddress
}

// SlotOf returns the slot a document occupies.
func (d Document) SlotOf() Slot {
	return Slot{Path: d.Path, Author: d.Author}
}

// IsLive reports whether the document is not expired at instant now
// (microseconds since epoch). A document with no DeleteAfter is always
// live. A document is live while now <= DeleteAfter.
func (d Document) IsLive(now int64) bool {
	if d.DeleteAfter == nil {
		return true
	}
	return now <= *d.DeleteAfter
}

// IsExpired is the complement of IsLive.
func (d Document) IsExpired(now int64) bool {
	return !d.IsLive(now)
}

// Clone returns a deep, independent copy of the document. Drivers use
// this to freeze a document before storing it and before handing a
// stored document back to a caller, so no caller can mutate shared
// storage through a returned value.
func (d Document) Clone() Document {
	clone := d
	if d.DeleteAfter != nil {
		v := *d.DeleteAfter
		clone.DeleteAfter = &v
	}
	return clone
}

// contentHashDomain is the domain-separation prefix mixed into every
// content hash: a null byte separates the domain from the data so no
// domain/data boundary collision is possible.
const contentHashDomain = "wsstore/content/v1"

var contentHashEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ComputeContentHash returns the base32 SHA-256 content hash bound into
// a document's signature. Path is not part of the hash; only the byte
// content is — two documents with identical content at different paths
// hash identically, which is fine since the hash is scoped by the
// signature over the whole document.
func ComputeContentHash(content string) string {
	h := sha256.New()
	h.Write([]byte(contentHashDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(content))
	return contentHashEncoding.EncodeToString(h.Sum(nil))
}

// NormalizePath returns the NFC (canonical composition) normalized form
// of a path, so two peers typing the same logical path with different
// Unicode compositions converge on one sort/comparison key.
func NormalizePath(path string) string {
	return norm.NFC.String(path)
}
