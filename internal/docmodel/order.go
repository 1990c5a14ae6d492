package docmodel

// HistoryLess implements the history order:
//
//	path ASC, timestamp DESC, signature DESC
//
// Within a path, the winning version sorts first. Signature is the
// deterministic tiebreak: it is a function of the document's content, so
// every peer that ingested the same bytes agrees on the ordering without
// needing a wall clock.
func HistoryLess(a, b Document) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.Signature > b.Signature
}

// PathAuthorLess implements the path-then-author order for multi-path
// listings. Neither driver nor the store calls it: Store.Paths returns
// bare path strings sorted ascending.
func PathAuthorLess(a, b Document) bool {
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Author < b.Author
}

// TimestampSigLess reports whether (ts1, sig1) sorts strictly before
// (ts2, sig2) under the (timestamp, signature) lexicographic order used
// for LWW comparisons.
func TimestampSigLess(ts1 int64, sig1 string, ts2 int64, sig2 string) bool {
	if ts1 != ts2 {
		return ts1 < ts2
	}
	return sig1 < sig2
}

// TimestampSigLessEq reports (ts1, sig1) <= (ts2, sig2).
func TimestampSigLessEq(ts1 int64, sig1 string, ts2 int64, sig2 string) bool {
	return !TimestampSigLess(ts2, sig2, ts1, sig1)
}
