package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// sqliteBaseSchema is the record table itself, shared by both search
// index variants.
const sqliteBaseSchema = `
CREATE TABLE IF NOT EXISTS records (
    id           TEXT PRIMARY KEY,
    content      TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'text',
    source       TEXT,
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);
`

// sqliteFTSSchema is the FTS5 external-content index. The triggers make
// index maintenance part of the same transaction as the row mutation, so
// no dual-write race is possible: committed rows and the search index
// can never disagree.
//
// The mattn driver only compiles FTS5 in when built with
// -tags sqlite_fts5; without it this DDL fails and the backend falls
// back to the inverted index below.
const sqliteFTSSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
    content,
    source,
    content='records',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
    INSERT INTO records_fts(rowid, content, source)
    VALUES (new.rowid, new.content, new.source);
END;

CREATE TRIGGER IF NOT EXISTS records_ad AFTER DELETE ON records BEGIN
    INSERT INTO records_fts(records_fts, rowid, content, source)
    VALUES ('delete', old.rowid, old.content, old.source);
END;
`

// sqliteTermsSchema is the fallback inverted index: one row per distinct
// term per record, maintained by the backend inside the same transaction
// as the record write or delete.
const sqliteTermsSchema = `
CREATE TABLE IF NOT EXISTS records_terms (
    term         TEXT NOT NULL,
    record_rowid INTEGER NOT NULL,
    PRIMARY KEY (term, record_rowid)
) WITHOUT ROWID;
`

// sqliteBackend stores records in SQLite via the mattn/go-sqlite3
// driver. Search is served by FTS5 when the driver carries it (build
// with -tags sqlite_fts5) and by the records_terms inverted index
// otherwise.
type sqliteBackend struct {
	db  *sql.DB
	fts bool
}

// newSQLiteBackend opens the database at dbPath. The path can be a file
// path or ":memory:" for an in-memory database.
func newSQLiteBackend(dbPath string) (*sqliteBackend, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection; collapsing the pool
	// to one connection keeps every session on the same database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) init(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, sqliteBaseSchema); err != nil {
		return err
	}

	if _, err := b.db.ExecContext(ctx, sqliteFTSSchema); err != nil {
		if !strings.Contains(err.Error(), "no such module: fts5") {
			return err
		}
		return b.initFallback(ctx)
	}

	b.fts = true
	return nil
}

// initFallback creates the inverted-index table used when the driver
// was built without FTS5.
func (b *sqliteBackend) initFallback(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, sqliteTermsSchema)
	return err
}

func (b *sqliteBackend) insert(ctx context.Context, r *Record) error {
	const stmt = `INSERT INTO records (id, content, content_type, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`

	if b.fts {
		// The AFTER INSERT trigger keeps the index in step.
		_, err := b.db.ExecContext(ctx, stmt,
			r.ID, r.Content, string(r.ContentType), nullable(r.Source), r.CreatedAt,
		)
		return asConflict(err, r.ID)
	}

	// Without triggers, the row and its index terms commit together.
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, stmt,
		r.ID, r.Content, string(r.ContentType), nullable(r.Source), r.CreatedAt,
	)
	if err != nil {
		return asConflict(err, r.ID)
	}

	rowid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, term := range tokenize(r.Content + " " + r.Source) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO records_terms (term, record_rowid) VALUES (?, ?)`,
			term, rowid,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (b *sqliteBackend) get(ctx context.Context, id string) (*Record, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, content, content_type, source, created_at
		 FROM records WHERE id = ?`, id,
	)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return r, err
}

func (b *sqliteBackend) delete(ctx context.Context, id string) (bool, error) {
	if b.fts {
		res, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
		if err != nil {
			return false, err
		}
		return rowsAffected(res)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records_terms
		 WHERE record_rowid IN (SELECT rowid FROM records WHERE id = ?)`, id,
	); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, err
	}

	found, err := rowsAffected(res)
	if err != nil {
		return false, err
	}

	return found, tx.Commit()
}

func (b *sqliteBackend) list(ctx context.Context, limit, offset int) ([]*Record, error) {
	// rowid breaks created_at ties so paging stays deterministic.
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, content, content_type, source, created_at
		 FROM records
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (b *sqliteBackend) count(ctx context.Context) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

func (b *sqliteBackend) search(ctx context.Context, query string, limit int) ([]*Record, error) {
	if b.fts {
		return b.searchFTS(ctx, query, limit)
	}
	return b.searchTerms(ctx, query, limit)
}

func (b *sqliteBackend) searchFTS(ctx context.Context, query string, limit int) ([]*Record, error) {
	// bm25 rank ascending is most relevant first; created_at breaks ties.
	rows, err := b.db.QueryContext(ctx,
		`SELECT r.id, r.content, r.content_type, r.source, r.created_at
		 FROM records r
		 JOIN records_fts ON records_fts.rowid = r.rowid
		 WHERE records_fts MATCH ?
		 ORDER BY records_fts.rank, r.created_at DESC
		 LIMIT ?`, query, limit,
	)
	if err != nil {
		// Malformed MATCH syntax surfaces here, not as zero results.
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	return records, nil
}

// searchTerms is AND-of-words over the inverted index: every query term
// must match, a trailing * makes a term a prefix match, quoted phrases
// must appear in token order. Without bm25 the ranking degrades to
// recency.
func (b *sqliteBackend) searchTerms(ctx context.Context, query string, limit int) ([]*Record, error) {
	terms, phrases := parseTermQuery(query)
	if len(terms) == 0 {
		return []*Record{}, nil
	}

	subs := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)+1)
	for _, t := range terms {
		if t.prefix {
			subs = append(subs, `SELECT record_rowid FROM records_terms WHERE term LIKE ?`)
			args = append(args, t.text+"%")
		} else {
			subs = append(subs, `SELECT record_rowid FROM records_terms WHERE term = ?`)
			args = append(args, t.text)
		}
	}

	// Phrases are checked after the candidate scan, so the SQL limit
	// only applies when it cannot drop rows a phrase filter would keep.
	sqlLimit := limit
	if len(phrases) > 0 {
		sqlLimit = -1
	}
	args = append(args, sqlLimit)

	rows, err := b.db.QueryContext(ctx,
		`SELECT id, content, content_type, source, created_at
		 FROM records
		 WHERE rowid IN (`+strings.Join(subs, " INTERSECT ")+`)
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`, args...,
	)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	if len(phrases) > 0 {
		records = filterPhrases(records, phrases, limit)
	}

	return records, nil
}

// filterPhrases keeps records whose normalized token stream contains
// every phrase in order, capped at limit.
func filterPhrases(records []*Record, phrases []string, limit int) []*Record {
	kept := []*Record{}
	for _, r := range records {
		hay := " " + strings.Join(tokenize(r.Content+" "+r.Source), " ") + " "

		match := true
		for _, p := range phrases {
			if !strings.Contains(hay, " "+p+" ") {
				match = false
				break
			}
		}

		if match {
			kept = append(kept, r)
			if len(kept) == limit {
				break
			}
		}
	}

	return kept
}

func (b *sqliteBackend) close() error {
	return b.db.Close()
}

// tokenize lowercases s and splits it into letter/digit runs. Index and
// query sides share it so terms always compare equal.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type queryTerm struct {
	text   string
	prefix bool
}

// parseTermQuery splits a query into AND-required terms and normalized
// quoted phrases. A trailing * marks a term as a prefix match; a
// phrase's own words are also required terms so the index narrows the
// candidate set before the phrase check.
func parseTermQuery(query string) ([]queryTerm, []string) {
	var phrases []string

	rest := query
	for {
		open := strings.Index(rest, `"`)
		if open < 0 {
			break
		}
		span := strings.Index(rest[open+1:], `"`)
		if span < 0 {
			break
		}

		if toks := tokenize(rest[open+1 : open+1+span]); len(toks) > 0 {
			phrases = append(phrases, strings.Join(toks, " "))
		}
		rest = rest[:open] + " " + rest[open+span+2:]
	}

	fields := strings.FieldsFunc(strings.ToLower(rest), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '*'
	})

	terms := make([]queryTerm, 0, len(fields))
	for _, f := range fields {
		prefix := strings.HasSuffix(f, "*")
		text := strings.Trim(f, "*")
		if text == "" {
			continue
		}
		terms = append(terms, queryTerm{text: text, prefix: prefix})
	}

	for _, p := range phrases {
		for _, t := range strings.Fields(p) {
			terms = append(terms, queryTerm{text: t})
		}
	}

	return terms, phrases
}

func asConflict(err error, id string) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return &ConflictError{ID: id}
	}

	return err
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r      Record
		ctype  string
		source sql.NullString
	)

	if err := row.Scan(&r.ID, &r.Content, &ctype, &source, &r.CreatedAt); err != nil {
		return nil, err
	}

	r.ContentType = ContentType(ctype)
	r.Source = source.String

	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]*Record, error) {
	records := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ backend = (*sqliteBackend)(nil)
