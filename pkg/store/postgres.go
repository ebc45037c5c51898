package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// postgresSchema mirrors the SQLite layout on Postgres. Full-text search
// uses a generated tsvector column: the index is computed inside the same
// statement that mutates the row, which gives the same
// no-dual-write-race guarantee the FTS5 triggers give on SQLite.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS records (
    id           TEXT PRIMARY KEY,
    content      TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'text',
    source       TEXT,
    created_at   TIMESTAMPTZ NOT NULL,
    search_vec   tsvector GENERATED ALWAYS AS (
        to_tsvector('english', content || ' ' || coalesce(source, ''))
    ) STORED
);

CREATE INDEX IF NOT EXISTS idx_records_created ON records (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_search ON records USING GIN (search_vec);
`

const pgUniqueViolation = "23505"

// postgresBackend stores records in Postgres via pgx's database/sql
// adapter.
type postgresBackend struct {
	db *sql.DB
}

func newPostgresBackend(url string) (*postgresBackend, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &postgresBackend{db: db}, nil
}

func (b *postgresBackend) init(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, postgresSchema)
	return err
}

func (b *postgresBackend) insert(ctx context.Context, r *Record) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO records (id, content, content_type, source, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Content, string(r.ContentType), nullable(r.Source), r.CreatedAt,
	)

	var perr *pgconn.PgError
	if errors.As(err, &perr) && perr.Code == pgUniqueViolation {
		return &ConflictError{ID: r.ID}
	}

	return err
}

func (b *postgresBackend) get(ctx context.Context, id string) (*Record, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT id, content, content_type, source, created_at
		 FROM records WHERE id = $1`, id,
	)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return r, err
}

func (b *postgresBackend) delete(ctx context.Context, id string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (b *postgresBackend) list(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, content, content_type, source, created_at
		 FROM records
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (b *postgresBackend) count(ctx context.Context) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n)
	return n, err
}

func (b *postgresBackend) search(ctx context.Context, query string, limit int) ([]*Record, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, content, content_type, source, created_at
		 FROM records
		 WHERE search_vec @@ websearch_to_tsquery('english', $1)
		 ORDER BY ts_rank(search_vec, websearch_to_tsquery('english', $1)) DESC,
		          created_at DESC
		 LIMIT $2`, query, limit,
	)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}
	defer rows.Close()

	records, err := collectRecords(rows)
	if err != nil {
		return nil, &QueryError{Query: query, Err: err}
	}

	return records, nil
}

func (b *postgresBackend) close() error {
	return b.db.Close()
}

var _ backend = (*postgresBackend)(nil)
