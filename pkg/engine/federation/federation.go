// Package federation composes multiple read-only sources into one
// engine. Queries fan out to every source concurrently; a failing source
// is logged and excluded so the healthy sources still answer. Result ids
// are prefixed with their source name so callers can tell provenance and
// route follow-ups.
//
// Federation is read-only by construction: it declares only info and
// query, and because mutations across independently-owned stores have no
// sane atomicity story, the wrapper's synthesized mutations apply to the
// local canonical store alone.
package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/logger"
)

const instructions = "Federated memory across multiple sources. Result ids are " +
	"prefixed with their source name (\"source:id\")."

// Engine fans queries out across its sources.
type Engine struct {
	sources []engine.Engine
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

// New creates a federation over the given sources. Every source must
// itself be a valid engine, and source names must be unique because they
// namespace result ids.
func New(sources []engine.Engine, opts ...Option) (*Engine, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("federation requires at least one source")
	}

	seen := map[string]bool{}
	for _, s := range sources {
		if err := engine.Validate(s); err != nil {
			return nil, fmt.Errorf("federation source invalid: %w", err)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate federation source name %q", s.Name())
		}
		seen[s.Name()] = true
	}

	e := &Engine{
		sources: sources,
		logger:  logger.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "federation" }

// Capabilities implements engine.Engine. Federation is read-only.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{engine.OperationInfo, engine.OperationQuery}
}

// Info aggregates source infos. Failed sources are reported in metadata
// rather than failing the whole call.
func (e *Engine) Info(ctx context.Context) (*engine.InfoResponse, error) {
	var (
		mu       sync.Mutex
		records  int
		healthy  int
		metadata = map[string]string{}
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range e.sources {
		g.Go(func() error {
			info, err := src.Info(gctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				e.logger.Warn("federation source info failed", "source", src.Name(), "error", err)
				metadata["source."+src.Name()] = "unavailable"
				return nil
			}

			records += info.Records
			healthy++
			metadata["source."+src.Name()] = strconv.Itoa(info.Records) + " records"
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if healthy == 0 {
		return nil, fmt.Errorf("no federation source is reachable")
	}

	metadata["sources"] = strconv.Itoa(len(e.sources))

	return &engine.InfoResponse{
		Engine:       e.Name(),
		Records:      records,
		Metadata:     metadata,
		Instructions: instructions,
	}, nil
}

// Query fans out to every source concurrently, prefixes result ids with
// the source name, and excludes sources that fail. Zero healthy sources
// is an error; zero matches from healthy sources is an empty result.
func (e *Engine) Query(ctx context.Context, query string, limit int) (*engine.QueryResponse, error) {
	perSource := make([][]engine.QueryResult, len(e.sources))
	failures := make([]error, len(e.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range e.sources {
		g.Go(func() error {
			resp, err := src.Query(gctx, query, limit)
			if err != nil {
				e.logger.Warn("federation source query failed", "source", src.Name(), "error", err)
				failures[i] = err
				return nil
			}

			results := make([]engine.QueryResult, 0, len(resp.Results))
			for _, r := range resp.Results {
				r.ID = src.Name() + ":" + r.ID
				results = append(results, r)
			}
			perSource[i] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	results := []engine.QueryResult{}
	for i := range e.sources {
		if failures[i] != nil {
			failed++
			continue
		}
		results = append(results, perSource[i]...)
	}

	if failed == len(e.sources) {
		return nil, fmt.Errorf("all federation sources failed")
	}

	return &engine.QueryResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

// Close closes every source, joining their errors.
func (e *Engine) Close() error {
	var errs []error
	for _, src := range e.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", src.Name(), err))
		}
	}

	return errors.Join(errs...)
}

var _ engine.Engine = (*Engine)(nil)
