// Package sqlite implements the on-disk driver.Driver: a single docs
// table keyed (path, author) plus a config side table, backed by
// database/sql and github.com/mattn/go-sqlite3. Open/pragma sequencing
// and scan-row helpers follow this store's own schema-migration and
// deterministic-ORDER-BY conventions; the upsert here is an
// unconditional overwrite, since the driver layer never decides
// accept/ignore — that policy lives in internal/store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
	"github.com/fenwick-sync/wsstore/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is recorded in the config table.
// An unknown version found in an existing database means refuse to
// open, not attempt a blind migration.
const currentSchemaVersion = "1"

// Driver is the on-disk implementation of driver.Driver.
type Driver struct {
	db        *sql.DB
	workspace docmodel.WorkspaceAddress
}

var _ driver.Driver = (*Driver)(nil)

// Open opens (creating if necessary) a SQLite database per opts and
// applies the required pragmas. It does not run Begin — the caller
// (internal/store.Open) does that once it has a workspace address.
func Open(opts Options) (*Driver, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite: open: path is required")
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", opts.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: connect %s: %w", opts.Path, err)
	}

	// SQLite only supports one writer at a time; a single connection
	// avoids SQLITE_BUSY under our own process's concurrent callers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA synchronous = %s", opts.SynchronousMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeoutMS),
		"PRAGMA foreign_keys = ON",
	}
	if opts.CacheSizeKB > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA cache_size = -%d", opts.CacheSizeKB))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// Begin checks the schema version and runs an initial expiry sweep.
// Queries also filter out expired documents at read time regardless,
// so the sweep is an optimization, not a correctness requirement.
func (d *Driver) Begin(ctx context.Context, workspace docmodel.WorkspaceAddress) error {
	d.workspace = workspace

	version, ok, err := d.GetConfig(ctx, "schemaVersion")
	if err != nil {
		return fmt.Errorf("sqlite: begin: read schema version: %w", err)
	}
	if !ok {
		if err := d.SetConfig(ctx, "schemaVersion", currentSchemaVersion); err != nil {
			return fmt.Errorf("sqlite: begin: write schema version: %w", err)
		}
	} else if version != currentSchemaVersion {
		return fmt.Errorf("sqlite: begin: unknown schema version %q (expected %q)", version, currentSchemaVersion)
	}

	// Begin runs before the store has accepted any writes, so sweeping at
	// the wall clock here is safe regardless of a later test-clock
	// override.
	if _, err := d.RemoveExpiredDocs(ctx, time.Now().UnixMicro()); err != nil {
		return fmt.Errorf("sqlite: begin: initial expiry sweep: %w", err)
	}
	return nil
}

func (d *Driver) liveFilter(now int64) (string, []any) {
	return "(delete_after IS NULL OR delete_after >= ?)", []any{now}
}

// Authors returns sorted, unique authors of live documents.
func (d *Driver) Authors(ctx context.Context, now int64) ([]docmodel.AuthorAddress, error) {
	liveSQL, liveArgs := d.liveFilter(now)
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT DISTINCT author FROM docs WHERE %s ORDER BY author ASC", liveSQL), liveArgs...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: authors: %w", err)
	}
	defer rows.Close()

	var out []docmodel.AuthorAddress
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("sqlite: authors: scan: %w", err)
		}
		out = append(out, docmodel.AuthorAddress(a))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: authors: iterate: %w", err)
	}
	if out == nil {
		out = []docmodel.AuthorAddress{}
	}
	return out, nil
}

// PathQuery returns sorted, unique, non-expired paths matching q, with
// the history fold applied first: for the default HistoryLatest, a
// path is only a candidate through its per-path winner, so the
// predicate is checked against that winner alone, not against every
// live version at the path.
func (d *Driver) PathQuery(ctx context.Context, q docmodel.Query, now int64) ([]string, error) {
	if q.IsImpossible() {
		return []string{}, nil
	}

	filterSQL, filterArgs := querysql.CompilePredicate(q)
	liveSQL, liveArgs := d.liveFilter(now)

	var sqlText string
	var args []any
	if q.EffectiveHistory() == docmodel.HistoryLatest {
		sqlText = fmt.Sprintf(`
			SELECT DISTINCT path FROM (
				SELECT path, author, content, timestamp, signature, ROW_NUMBER() OVER (
					PARTITION BY path ORDER BY timestamp DESC, signature DESC
				) AS rn
				FROM docs WHERE %s
			) WHERE rn = 1 AND %s
			ORDER BY %s%s`,
			liveSQL, filterSQL, querysql.PathOrderBy, querysql.LimitClause(q.Limit),
		)
		args = append(append([]any{}, liveArgs...), filterArgs...)
	} else {
		sqlText = fmt.Sprintf(
			"SELECT DISTINCT path FROM docs WHERE %s AND %s ORDER BY %s%s",
			filterSQL, liveSQL, querysql.PathOrderBy, querysql.LimitClause(q.Limit),
		)
		args = append(append([]any{}, filterArgs...), liveArgs...)
	}

	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: path query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("sqlite: path query: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: path query: iterate: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// DocumentQuery returns matching documents in history order, with the
// history fold, Limit, and LimitBytes applied.
func (d *Driver) DocumentQuery(ctx context.Context, q docmodel.Query, now int64) ([]docmodel.Document, error) {
	if q.IsImpossible() {
		return []docmodel.Document{}, nil
	}

	filterSQL, filterArgs := querysql.CompilePredicate(q)
	liveSQL, liveArgs := d.liveFilter(now)

	const cols = "path, author, format, workspace, content, content_hash, timestamp, delete_after, signature"

	var sqlText string
	var args []any
	if q.EffectiveHistory() == docmodel.HistoryLatest {
		// Window function keeps, per path, only the row that wins
		// history order — the SQL analogue of the memory driver's
		// sort-then-take-first-per-path fold. The predicate is applied
		// AFTER rn=1 is chosen, against that winner alone: a path whose
		// winner fails the predicate is excluded even if a non-winning
		// version at that path would have matched.
		sqlText = fmt.Sprintf(`
			SELECT %s FROM (
				SELECT %s, ROW_NUMBER() OVER (
					PARTITION BY path ORDER BY timestamp DESC, signature DESC
				) AS rn
				FROM docs WHERE %s
			) WHERE rn = 1 AND %s
			ORDER BY %s%s`,
			cols, cols, liveSQL, filterSQL, querysql.HistoryOrderBy, querysql.LimitClause(q.Limit),
		)
		args = append(append([]any{}, liveArgs...), filterArgs...)
	} else {
		sqlText = fmt.Sprintf(
			"SELECT %s FROM docs WHERE %s AND %s ORDER BY %s%s",
			cols, filterSQL, liveSQL, querysql.HistoryOrderBy, querysql.LimitClause(q.Limit),
		)
		args = append(append([]any{}, filterArgs...), liveArgs...)
	}

	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: document query: %w", err)
	}
	defer rows.Close()

	var out []docmodel.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: document query: iterate: %w", err)
	}

	if q.LimitBytes > 0 {
		out = docmodel.ApplyLimitBytes(out, q.LimitBytes)
	}
	if out == nil {
		out = []docmodel.Document{}
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Rows and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (docmodel.Document, error) {
	var doc docmodel.Document
	var workspace, author string
	var deleteAfter sql.NullInt64

	if err := row.Scan(
		&doc.Path, &author, &doc.Format, &workspace,
		&doc.Content, &doc.ContentHash, &doc.Timestamp, &deleteAfter, &doc.Signature,
	); err != nil {
		return docmodel.Document{}, fmt.Errorf("sqlite: scan document: %w", err)
	}
	doc.Author = docmodel.AuthorAddress(author)
	doc.Workspace = docmodel.WorkspaceAddress(workspace)
	if deleteAfter.Valid {
		v := deleteAfter.Int64
		doc.DeleteAfter = &v
	}
	return doc, nil
}

// GetDocumentAt returns the live document at a slot, if any.
func (d *Driver) GetDocumentAt(ctx context.Context, path string, author docmodel.AuthorAddress, now int64) (docmodel.Document, bool, error) {
	liveSQL, liveArgs := d.liveFilter(now)
	row := d.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT path, author, format, workspace, content, content_hash, timestamp, delete_after, signature "+
			"FROM docs WHERE path = ? AND author = ? AND %s", liveSQL),
		append([]any{path, string(author)}, liveArgs...)...)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return docmodel.Document{}, false, nil
	}
	if err != nil {
		return docmodel.Document{}, false, err
	}
	return doc, true, nil
}

// UpsertDocument writes doc unconditionally for its (path, author) slot.
func (d *Driver) UpsertDocument(ctx context.Context, doc docmodel.Document) (docmodel.Document, error) {
	var deleteAfter any
	if doc.DeleteAfter != nil {
		deleteAfter = *doc.DeleteAfter
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO docs (path, author, format, workspace, content, content_hash, timestamp, delete_after, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, author) DO UPDATE SET
			format = excluded.format,
			workspace = excluded.workspace,
			content = excluded.content,
			content_hash = excluded.content_hash,
			timestamp = excluded.timestamp,
			delete_after = excluded.delete_after,
			signature = excluded.signature
	`,
		doc.Path, string(doc.Author), doc.Format, string(doc.Workspace),
		doc.Content, doc.ContentHash, doc.Timestamp, deleteAfter, doc.Signature,
	)
	if err != nil {
		return docmodel.Document{}, fmt.Errorf("sqlite: upsert: %w", err)
	}
	return doc.Clone(), nil
}

// RemoveExpiredDocs deletes every document with delete_after < now.
func (d *Driver) RemoveExpiredDocs(ctx context.Context, now int64) (int, error) {
	result, err := d.db.ExecContext(ctx, "DELETE FROM docs WHERE delete_after IS NOT NULL AND delete_after < ?", now)
	if err != nil {
		return 0, fmt.Errorf("sqlite: remove expired: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: remove expired: rows affected: %w", err)
	}
	return int(n), nil
}

// Close releases the database handle, optionally dropping all data.
func (d *Driver) Close(ctx context.Context, opts driver.CloseOptions) error {
	if opts.Delete {
		if _, err := d.db.ExecContext(ctx, "DELETE FROM docs"); err != nil {
			d.db.Close()
			return fmt.Errorf("sqlite: close: delete docs: %w", err)
		}
		if _, err := d.db.ExecContext(ctx, "DELETE FROM config"); err != nil {
			d.db.Close()
			return fmt.Errorf("sqlite: close: delete config: %w", err)
		}
	}
	return d.db.Close()
}

// SetConfig sets a per-workspace metadata key.
func (d *Driver) SetConfig(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO config (key, content) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content
	`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite: set config: %w", err)
	}
	return nil
}

// GetConfig reads a per-workspace metadata key.
func (d *Driver) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT content FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sqlite: get config: %w", err)
	}
	return value, true, nil
}

// DeleteConfig removes a single metadata key.
func (d *Driver) DeleteConfig(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM config WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("sqlite: delete config: %w", err)
	}
	return nil
}

// DeleteAllConfig clears all metadata.
func (d *Driver) DeleteAllConfig(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM config")
	if err != nil {
		return fmt.Errorf("sqlite: delete all config: %w", err)
	}
	return nil
}
