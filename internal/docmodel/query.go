package docmodel

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// History selects which versions of a path a query returns.
type History string

const (
	// HistoryLatest keeps only the winning document per path.
	HistoryLatest History = "latest"
	// HistoryAll keeps every live version of a path.
	HistoryAll History = "all"
)

// Cursor is the opaque (path, timestamp, signature) pagination cursor
// backing a query's ContinueAfter selector. Strict greater-than under
// history order is the resume semantics: a query with ContinueAfter set
// only returns documents sorting strictly after it.
type Cursor struct {
	Path      string
	Timestamp int64
	Signature string
}

// Encode renders the cursor as an opaque pagination token.
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%s\x00%d\x00%s", c.Path, c.Timestamp, c.Signature)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Cursor.Encode.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "\x00", 3)
	if len(parts) != 3 {
		return Cursor{}, fmt.Errorf("decode cursor: malformed token")
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode cursor: bad timestamp: %w", err)
	}
	return Cursor{Path: parts[0], Timestamp: ts, Signature: parts[2]}, nil
}

// Query is a sparse selector record: every field is an independent
// optional filter. Unset selectors (nil pointers, zero Limit/LimitBytes)
// don't constrain the result.
type Query struct {
	Path          *string
	PathPrefix    *string
	Timestamp     *int64
	TimestampGt   *int64
	TimestampLt   *int64
	Author        *AuthorAddress
	ContentSize   *int64
	ContentSizeGt *int64
	ContentSizeLt *int64

	// IsHead, if non-nil and true, is equivalent to History == HistoryLatest.
	IsHead *bool

	// History selects the fold. Empty means "apply the default" — see
	// CleanUp.
	History History

	Limit         int
	LimitBytes    int
	ContinueAfter *Cursor

	// impossible is set by CleanUp when the selectors are mutually
	// contradictory (e.g. Path set to a value PathPrefix can't match).
	// A query marked impossible matches nothing, by construction, without
	// drivers needing their own contradiction detection.
	impossible bool
}

// IsImpossible reports whether CleanUp determined this query can never
// match any document.
func (q Query) IsImpossible() bool {
	return q.impossible
}

// EffectiveHistory returns the fold this query applies after defaults
// are resolved. CleanUp must be called first; calling this on a query
// that has not been cleaned returns the zero-value default applied by
// CleanUp (HistoryLatest, the common case of wanting only live heads).
func (q Query) EffectiveHistory() History {
	if q.IsHead != nil {
		if *q.IsHead {
			return HistoryLatest
		}
		return HistoryAll
	}
	if q.History == "" {
		return HistoryLatest
	}
	return q.History
}

// CleanUp canonicalizes a query: it applies the history default and
// detects selector contradictions, collapsing them to an impossible
// query rather than requiring every driver to re-derive this logic.
func CleanUp(q Query) Query {
	out := q
	out.History = out.EffectiveHistory()
	out.IsHead = nil

	if out.Path != nil {
		p := NormalizePath(*out.Path)
		out.Path = &p
	}
	if out.PathPrefix != nil {
		p := NormalizePath(*out.PathPrefix)
		out.PathPrefix = &p
	}

	if out.Path != nil && out.PathPrefix != nil && !strings.HasPrefix(*out.Path, *out.PathPrefix) {
		out.impossible = true
	}
	if out.Timestamp != nil {
		if out.TimestampGt != nil && *out.Timestamp <= *out.TimestampGt {
			out.impossible = true
		}
		if out.TimestampLt != nil && *out.Timestamp >= *out.TimestampLt {
			out.impossible = true
		}
	}
	if out.TimestampGt != nil && out.TimestampLt != nil && *out.TimestampGt >= *out.TimestampLt {
		out.impossible = true
	}
	if out.ContentSize != nil {
		if out.ContentSizeGt != nil && *out.ContentSize <= *out.ContentSizeGt {
			out.impossible = true
		}
		if out.ContentSizeLt != nil && *out.ContentSize >= *out.ContentSizeLt {
			out.impossible = true
		}
	}
	if out.ContentSizeGt != nil && out.ContentSizeLt != nil && *out.ContentSizeGt >= *out.ContentSizeLt {
		out.impossible = true
	}
	if out.Limit < 0 {
		out.impossible = true
	}
	if out.LimitBytes < 0 {
		out.impossible = true
	}

	return out
}

// MatchesPredicate reports whether a live document satisfies a cleaned
// query's filter selectors. It does not apply the history fold, limits,
// or expiry — callers (drivers) apply those separately, since the fold
// and limit require seeing the whole candidate set in sorted order.
func MatchesPredicate(doc Document, q Query) bool {
	if q.impossible {
		return false
	}
	if q.Path != nil && doc.Path != *q.Path {
		return false
	}
	if q.PathPrefix != nil && !strings.HasPrefix(doc.Path, *q.PathPrefix) {
		return false
	}
	if q.Author != nil && doc.Author != *q.Author {
		return false
	}
	if q.Timestamp != nil && doc.Timestamp != *q.Timestamp {
		return false
	}
	if q.TimestampGt != nil && doc.Timestamp <= *q.TimestampGt {
		return false
	}
	if q.TimestampLt != nil && doc.Timestamp >= *q.TimestampLt {
		return false
	}
	size := int64(len(doc.Content))
	if q.ContentSize != nil && size != *q.ContentSize {
		return false
	}
	if q.ContentSizeGt != nil && size <= *q.ContentSizeGt {
		return false
	}
	if q.ContentSizeLt != nil && size >= *q.ContentSizeLt {
		return false
	}
	if q.ContinueAfter != nil {
		c := *q.ContinueAfter
		if !HistoryLess(Document{Path: c.Path, Timestamp: c.Timestamp, Signature: c.Signature}, doc) {
			return false
		}
	}
	return true
}

// ApplyLimitBytes truncates a history-ordered, already-filtered document
// slice to respect LimitBytes: accumulate UTF-8 content
// bytes and stop before the document that would make the total exceed
// the limit. A document landing exactly at the limit with empty content
// is also excluded, so tombstone tails don't pad out a byte-bounded page.
func ApplyLimitBytes(docs []Document, limitBytes int) []Document {
	if limitBytes <= 0 {
		return docs
	}
	var total int
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		n := len(d.Content)
		if total+n > limitBytes {
			break
		}
		if total+n == limitBytes && n == 0 {
			break
		}
		total += n
		out = append(out, d)
	}
	return out
}
