// Package canonical is the default engine: a thin view straight over the
// canonical store's full-text index. It keeps no state of its own, so it
// declares only the required operations and lets the wrapper synthesize
// every mutation.
package canonical

import (
	"context"
	"strconv"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/store"
)

const instructions = "General-purpose persistent memory. Store facts, notes and " +
	"documents with insert; retrieve them with full-text query. Phrase " +
	"quoting and * prefix matching are supported."

// Engine answers info and query from the canonical store.
type Engine struct {
	store *store.Canonical
}

// New creates a canonical engine over the given store.
func New(s *store.Canonical) *Engine {
	return &Engine{store: s}
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "canonical" }

// Capabilities implements engine.Engine.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{engine.OperationInfo, engine.OperationQuery}
}

// Info reports the record count and search characteristics.
func (e *Engine) Info(ctx context.Context) (*engine.InfoResponse, error) {
	n, err := e.store.CountRecords(ctx)
	if err != nil {
		return nil, err
	}

	return &engine.InfoResponse{
		Engine:  e.Name(),
		Records: n,
		Metadata: map[string]string{
			"search":  "full-text",
			"records": strconv.Itoa(n),
		},
		Instructions: instructions,
	}, nil
}

// Query runs a ranked full-text search over the canonical store.
func (e *Engine) Query(ctx context.Context, query string, limit int) (*engine.QueryResponse, error) {
	records, err := e.store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]engine.QueryResult, 0, len(records))
	for _, r := range records {
		results = append(results, engine.QueryResult{
			ID:        r.ID,
			Content:   r.Content,
			Source:    r.Source,
			CreatedAt: r.CreatedAt,
		})
	}

	return &engine.QueryResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

// Close is a no-op; the store is owned by the caller.
func (e *Engine) Close() error { return nil }

var _ engine.Engine = (*Engine)(nil)
