// Package store provides the canonical persistence layer for engram:
// durable records, content-addressed binary attachments, and a full-text
// search index that is kept in lock-step with the record table.
//
// The canonical store is the single source of truth. Engines consume its
// writes and answer queries from their own derived indexes; everything an
// engine builds must be rebuildable from the records stored here.
//
// Two database backends are supported behind the same facade: SQLite
// (FTS5 virtual table, trigger-synced) and Postgres (generated tsvector
// column, GIN-indexed). The backend is chosen from the database URL.
package store

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/engramco/engram/pkg/logger"
)

const (
	// DefaultListLimit applies when a caller passes limit 0 to ListRecords.
	DefaultListLimit = 100

	// DefaultSearchLimit applies when a caller passes limit <= 0 to Search.
	DefaultSearchLimit = 10
)

// Config carries the storage settings the canonical store needs. It is
// constructed once by the caller (CLI or server wiring) and passed in;
// the store never reads configuration itself.
type Config struct {
	// DatabaseURL selects the backend: a postgres:// URL opens Postgres,
	// anything else is treated as a SQLite file path (":memory:" works).
	DatabaseURL string

	// AttachmentsPath is the root directory for content-addressed blobs.
	AttachmentsPath string
}

// Canonical is the canonical store facade: record CRUD, attachment
// materialization, and ranked full-text search, with lazy concurrency-safe
// schema initialization.
type Canonical struct {
	backend backend
	blobs   *Attachments
	logger  *slog.Logger

	ready  atomic.Bool
	initMu sync.Mutex
}

// Option configures a Canonical created with New.
type Option func(*Canonical)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Canonical) {
		c.logger = l
	}
}

// New creates a canonical store for the given config. The database is
// opened eagerly but the schema is created lazily on first use.
func New(cfg Config, opts ...Option) (*Canonical, error) {
	var (
		b   backend
		err error
	)

	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") ||
		strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		b, err = newPostgresBackend(cfg.DatabaseURL)
	} else {
		b, err = newSQLiteBackend(cfg.DatabaseURL)
	}
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	c := &Canonical{
		backend: b,
		blobs:   NewAttachments(cfg.AttachmentsPath),
		logger:  logger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Initialize creates the schema and index structures. Idempotent and safe
// under concurrent first use: a ready flag is double-checked around a
// mutex so one-time work runs exactly once. A failed initialization is
// retried on the next call rather than latched.
func (c *Canonical) Initialize(ctx context.Context) error {
	if c.ready.Load() {
		return nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.ready.Load() {
		return nil
	}

	c.logger.Debug("creating canonical store schema")
	if err := c.backend.init(ctx); err != nil {
		return &StorageError{Op: "initialize", Err: err}
	}

	c.ready.Store(true)
	return nil
}

// Close releases the underlying database resources. Individual operations
// don't require a prior Close to be correct, but call it on shutdown.
func (c *Canonical) Close() error {
	c.logger.Debug("closing canonical store")
	return c.backend.close()
}

// Attachments exposes the content-addressed blob store, mainly so callers
// can resolve a file record's relative content path to an absolute one.
func (c *Canonical) Attachments() *Attachments { return c.blobs }

// InsertRecord persists a text record and returns its effective id. An
// empty id generates a UUIDv4; an empty contentType defaults to text.
// Inserting an id that already exists fails with *ConflictError.
func (c *Canonical) InsertRecord(ctx context.Context, content, id string, contentType ContentType, source string) (string, error) {
	if err := c.Initialize(ctx); err != nil {
		return "", err
	}

	if strings.TrimSpace(content) == "" {
		return "", &InvalidArgumentError{Reason: "content is required"}
	}

	if id == "" {
		id = uuid.NewString()
	}
	if contentType == "" {
		contentType = ContentTypeText
	}

	record := &Record{
		ID:          id,
		Content:     content,
		ContentType: contentType,
		Source:      source,
		CreatedAt:   time.Now().UTC(),
	}

	c.logger.Debug("inserting record", "id", id, "content_type", string(contentType))
	if err := c.backend.insert(ctx, record); err != nil {
		return "", shapeStorageErr("insert", err)
	}

	return id, nil
}

// InsertFile materializes file bytes into the attachment store, then
// inserts a file record whose content is the attachment-relative path and
// whose source is the original reference.
//
// Two modes: when data is non-nil, fileRef is the original filename and
// data the file bytes. When data is nil, fileRef must be an absolute
// local path that exists.
//
// Returns the record id and the absolute attachment path.
func (c *Canonical) InsertFile(ctx context.Context, fileRef string, data []byte, id string) (string, string, error) {
	if err := c.Initialize(ctx); err != nil {
		return "", "", err
	}

	var (
		rel, abs, source string
		err              error
	)

	if data != nil {
		rel, abs, err = c.blobs.Save(fileRef, data)
		source = "upload:" + fileRef
	} else {
		rel, abs, err = c.blobs.SaveLocal(fileRef)
		source = fileRef
	}
	if err != nil {
		return "", "", err
	}

	c.logger.Debug("saved attachment", "path", rel)

	rid, err := c.InsertRecord(ctx, rel, id, ContentTypeFile, source)
	if err != nil {
		return "", "", err
	}

	return rid, abs, nil
}

// GetRecord fetches a record by id. A miss is (nil, nil), not an error;
// callers that require existence layer their own not-found on top.
func (c *Canonical) GetRecord(ctx context.Context, id string) (*Record, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug("fetching record", "id", id)
	r, err := c.backend.get(ctx, id)
	if err != nil {
		return nil, shapeStorageErr("get", err)
	}

	return r, nil
}

// DeleteRecord removes a record by id, reporting whether it existed.
// Deleting twice is safe; the second call returns false.
func (c *Canonical) DeleteRecord(ctx context.Context, id string) (bool, error) {
	if err := c.Initialize(ctx); err != nil {
		return false, err
	}

	c.logger.Debug("deleting record", "id", id)
	found, err := c.backend.delete(ctx, id)
	if err != nil {
		return false, shapeStorageErr("delete", err)
	}

	return found, nil
}

// ListRecords returns records newest first. Negative limit or offset is
// rejected; limit 0 applies DefaultListLimit. An out-of-range offset
// yields an empty slice, not an error.
func (c *Canonical) ListRecords(ctx context.Context, limit, offset int) ([]*Record, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	if limit < 0 {
		return nil, &InvalidArgumentError{Reason: "limit must not be negative"}
	}
	if offset < 0 {
		return nil, &InvalidArgumentError{Reason: "offset must not be negative"}
	}
	if limit == 0 {
		limit = DefaultListLimit
	}

	c.logger.Debug("listing records", "limit", limit, "offset", offset)
	records, err := c.backend.list(ctx, limit, offset)
	if err != nil {
		return nil, shapeStorageErr("list", err)
	}

	return records, nil
}

// CountRecords returns the total record count.
func (c *Canonical) CountRecords(ctx context.Context) (int, error) {
	if err := c.Initialize(ctx); err != nil {
		return 0, err
	}

	n, err := c.backend.count(ctx)
	if err != nil {
		return 0, shapeStorageErr("count", err)
	}

	return n, nil
}

// Search runs a ranked full-text query over record content and source.
// An empty or whitespace query returns an empty slice: matching
// everything is never what a search caller meant. Zero matches is a
// normal empty result; only backend failures return *QueryError.
func (c *Canonical) Search(ctx context.Context, query string, limit int) ([]*Record, error) {
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		return []*Record{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	c.logger.Debug("searching records", "query", query, "limit", limit)
	return c.backend.search(ctx, query, limit)
}

// shapeStorageErr wraps raw backend errors as *StorageError while letting
// already-typed store errors pass through unchanged.
func shapeStorageErr(op string, err error) error {
	switch err.(type) {
	case *ConflictError, *InvalidArgumentError, *NotFoundError, *QueryError, *StorageError:
		return err
	}
	return &StorageError{Op: op, Err: err}
}
