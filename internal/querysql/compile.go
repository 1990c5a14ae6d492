// Package querysql compiles a docmodel.Query's selectors into a
// parameterized SQL WHERE-clause fragment for the SQLite driver.
//
// Values are never interpolated, only ever passed as "?" placeholders
// bound through args, and the compiler is a pure function with no
// knowledge of a live connection. It covers a single flat selector
// record against one table: no joins, no when-clause bound variables.
package querysql

import (
	"fmt"
	"strings"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
)

// CompilePredicate compiles the filter selectors of a cleaned query
// (Path/PathPrefix/Author/Timestamp*/ContentSize*/ContinueAfter) into a
// SQL boolean expression and its bound parameters. It does NOT include
// the live/expiry filter or the history fold — the caller (the sqlite
// driver) combines this fragment with those, since the fold determines
// whether a window function is needed at all.
//
// Returns ("1=1", nil) for a query with no selectors set, so callers can
// always do `"WHERE " + frag` unconditionally.
func CompilePredicate(q docmodel.Query) (string, []any) {
	var parts []string
	var args []any

	if q.Path != nil {
		parts = append(parts, "path = ?")
		args = append(args, *q.Path)
	}
	if q.PathPrefix != nil {
		parts = append(parts, "path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLikePrefix(*q.PathPrefix)+"%")
	}
	if q.Author != nil {
		parts = append(parts, "author = ?")
		args = append(args, string(*q.Author))
	}
	if q.Timestamp != nil {
		parts = append(parts, "timestamp = ?")
		args = append(args, *q.Timestamp)
	}
	if q.TimestampGt != nil {
		parts = append(parts, "timestamp > ?")
		args = append(args, *q.TimestampGt)
	}
	if q.TimestampLt != nil {
		parts = append(parts, "timestamp < ?")
		args = append(args, *q.TimestampLt)
	}
	if q.ContentSize != nil {
		parts = append(parts, "length(CAST(content AS BLOB)) = ?")
		args = append(args, *q.ContentSize)
	}
	if q.ContentSizeGt != nil {
		parts = append(parts, "length(CAST(content AS BLOB)) > ?")
		args = append(args, *q.ContentSizeGt)
	}
	if q.ContentSizeLt != nil {
		parts = append(parts, "length(CAST(content AS BLOB)) < ?")
		args = append(args, *q.ContentSizeLt)
	}
	if q.ContinueAfter != nil {
		c := *q.ContinueAfter
		// Strict greater-than under history order: path > cursor.path,
		// OR (path = cursor.path AND (timestamp, signature) < cursor's
		// (timestamp DESC, signature DESC) position) — i.e. sorts after
		// the cursor under ORDER BY path ASC, timestamp DESC, signature DESC.
		parts = append(parts, "(path > ? OR (path = ? AND (timestamp < ? OR (timestamp = ? AND signature < ?))))")
		args = append(args, c.Path, c.Path, c.Timestamp, c.Timestamp, c.Signature)
	}

	if len(parts) == 0 {
		return "1=1", nil
	}
	return strings.Join(parts, " AND "), args
}

// escapeLikePrefix escapes LIKE metacharacters in a literal prefix so
// PathPrefix matching behaves as plain string-prefix matching, not SQL
// wildcard matching.
func escapeLikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

// HistoryOrderBy is the deterministic ORDER BY clause for document
// listings: path ASC, timestamp DESC,
// signature DESC.
const HistoryOrderBy = "path ASC, timestamp DESC, signature DESC"

// PathOrderBy is the deterministic ORDER BY clause for path listings.
const PathOrderBy = "path ASC"

// LimitClause renders a SQL LIMIT clause, or "" if limit is not set.
func LimitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
