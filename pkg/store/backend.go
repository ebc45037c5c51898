package store

import "context"

// backend is the dialect-specific half of the canonical store: schema
// creation, row CRUD, and the synchronized full-text index. The Canonical
// facade owns lifecycle, validation, attachments, and error shaping.
type backend interface {
	// init creates the schema and full-text index structures. Must be
	// idempotent; the facade guarantees it runs at most once per process
	// barring earlier failures.
	init(ctx context.Context) error

	// insert persists a record. Returns *ConflictError if the id exists.
	insert(ctx context.Context, r *Record) error

	// get fetches a record by id, (nil, nil) on miss.
	get(ctx context.Context, id string) (*Record, error)

	// delete removes a record by id, reporting whether a row existed.
	delete(ctx context.Context, id string) (bool, error)

	// list returns records ordered by created_at descending,
	// deterministically paged.
	list(ctx context.Context, limit, offset int) ([]*Record, error)

	// count returns the total row count.
	count(ctx context.Context) (int, error)

	// search runs a ranked full-text query over content and source.
	search(ctx context.Context, query string, limit int) ([]*Record, error)

	// close releases the underlying connection resources.
	close() error
}
