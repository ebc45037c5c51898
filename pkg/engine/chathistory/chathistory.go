// Package chathistory is a flat-file engine: one JSON document per
// record under its data directory. It exists for setups that want every
// memory inspectable and greppable on disk with no database tooling.
//
// Queries are case-insensitive substring scans over the stored content.
// The file layout is not safe under concurrent mutation, so the engine
// carries the mutation-serialization marker.
package chathistory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/store"
)

const instructions = "Chat-history memory backed by one JSON file per record. " +
	"Queries are plain substring matches, so search with distinctive words " +
	"rather than phrases."

// record is the on-disk document shape.
type record struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Engine stores records as JSON files in dataDir.
type Engine struct {
	dataDir string
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a chat-history engine rooted at dataDir, creating the
// directory if needed.
func New(dataDir string, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &Engine{
		dataDir: dataDir,
		logger:  logger.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "chat-history" }

// Capabilities implements engine.Engine.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.OperationInsert,
		engine.OperationInsertFile,
		engine.OperationDelete,
		engine.OperationListRecords,
	}
}

// SerializeMutations marks the flat-file layout as unsafe under
// concurrent mutation.
func (e *Engine) SerializeMutations() {}

// Info reports the file count and data directory.
func (e *Engine) Info(_ context.Context) (*engine.InfoResponse, error) {
	paths, err := e.recordPaths()
	if err != nil {
		return nil, err
	}

	return &engine.InfoResponse{
		Engine:  e.Name(),
		Records: len(paths),
		Metadata: map[string]string{
			"data_dir": e.dataDir,
			"search":   "substring",
		},
		Instructions: instructions,
	}, nil
}

// Query scans every record file for a case-insensitive substring match.
// Corrupted files are skipped with a warning rather than failing the
// whole query.
func (e *Engine) Query(_ context.Context, query string, limit int) (*engine.QueryResponse, error) {
	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	results := []engine.QueryResult{}

	if needle != "" {
		records, err := e.loadAll()
		if err != nil {
			return nil, err
		}

		for _, r := range records {
			if !strings.Contains(strings.ToLower(r.Content), needle) {
				continue
			}

			results = append(results, engine.QueryResult{
				ID:        r.ID,
				Content:   r.Content,
				Source:    r.Source,
				CreatedAt: r.CreatedAt,
			})
			if len(results) >= limit {
				break
			}
		}
	}

	return &engine.QueryResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

// Insert mirrors a committed record to its JSON file.
func (e *Engine) Insert(_ context.Context, r *store.Record) error {
	return e.save(r)
}

// InsertFile mirrors a committed file record; the stored content is the
// attachment-relative path, same as the canonical row.
func (e *Engine) InsertFile(_ context.Context, r *store.Record, _ string) error {
	return e.save(r)
}

// Delete removes the record's file. A missing file is fine; the wrapper
// handles not-found semantics canonically.
func (e *Engine) Delete(_ context.Context, id string) error {
	err := os.Remove(e.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record file: %w", err)
	}

	return nil
}

// ListRecords pages the on-disk records newest first.
func (e *Engine) ListRecords(_ context.Context, limit, offset int) ([]*store.Record, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	if offset < 0 {
		return nil, &store.InvalidArgumentError{Reason: "offset must not be negative"}
	}

	records, err := e.loadAll()
	if err != nil {
		return nil, err
	}

	out := []*store.Record{}
	for i := offset; i < len(records) && len(out) < limit; i++ {
		r := records[i]
		out = append(out, &store.Record{
			ID:          r.ID,
			Content:     r.Content,
			ContentType: store.ContentType(r.ContentType),
			Source:      r.Source,
			CreatedAt:   r.CreatedAt,
		})
	}

	return out, nil
}

// Close is a no-op; files need no teardown.
func (e *Engine) Close() error { return nil }

func (e *Engine) path(id string) string {
	return filepath.Join(e.dataDir, id+".json")
}

func (e *Engine) save(r *store.Record) error {
	if strings.ContainsRune(r.ID, os.PathSeparator) {
		return &store.InvalidArgumentError{Reason: "record id must not contain path separators"}
	}

	doc := record{
		ID:          r.ID,
		Content:     r.Content,
		ContentType: string(r.ContentType),
		Source:      r.Source,
		CreatedAt:   r.CreatedAt,
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := os.WriteFile(e.path(r.ID), payload, 0o644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}

	return nil
}

func (e *Engine) recordPaths() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(e.dataDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan data directory: %w", err)
	}

	return paths, nil
}

// loadAll reads every record file, newest first. Corrupted files are
// logged and skipped.
func (e *Engine) loadAll() ([]record, error) {
	paths, err := e.recordPaths()
	if err != nil {
		return nil, err
	}

	records := make([]record, 0, len(paths))
	for _, p := range paths {
		payload, err := os.ReadFile(p)
		if err != nil {
			e.logger.Warn("skipping unreadable record file", "path", p, "error", err)
			continue
		}

		var r record
		if err := json.Unmarshal(payload, &r); err != nil {
			e.logger.Warn("skipping corrupted record file", "path", p, "error", err)
			continue
		}

		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

var (
	_ engine.Engine             = (*Engine)(nil)
	_ engine.Inserter           = (*Engine)(nil)
	_ engine.FileInserter       = (*Engine)(nil)
	_ engine.Deleter            = (*Engine)(nil)
	_ engine.RecordLister       = (*Engine)(nil)
	_ engine.MutationSerializer = (*Engine)(nil)
)
