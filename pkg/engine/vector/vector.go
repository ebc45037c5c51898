// Package vector is a semantic-search engine: record content is embedded
// via pkg/embeddings and indexed as points in a Qdrant collection. The
// index is derived state; losing it loses nothing, because every point
// can be rebuilt from the canonical store.
package vector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/engramco/engram/pkg/embeddings"
	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/store"
)

const (
	// DefaultCollection is the Qdrant collection name.
	DefaultCollection = "engram"

	// DefaultVectorSize matches nomic-embed-text, the default embedding
	// model.
	DefaultVectorSize = 768
)

const instructions = "Semantic memory over vector embeddings. Queries match by " +
	"meaning rather than exact words, so ask in natural language."

// PointStore is the slice of the Qdrant client the engine uses, split
// out so tests can substitute an in-memory fake.
type PointStore interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, req *qdrant.CountPoints) (uint64, error)
	Close() error
}

// Config carries the Qdrant connection settings.
type Config struct {
	Host       string
	Port       int
	Collection string
	VectorSize uint64
}

// Engine embeds content and indexes it in Qdrant.
type Engine struct {
	client     PointStore
	embedder   embeddings.Embedder
	collection string
	vectorSize uint64
	logger     *slog.Logger

	ready  atomic.Bool
	initMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New dials Qdrant and creates a vector engine using the given embedder.
func New(cfg Config, embedder embeddings.Embedder, opts ...Option) (*Engine, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return NewWithClient(client, embedder, cfg, opts...), nil
}

// NewWithClient creates a vector engine over an existing point store.
func NewWithClient(client PointStore, embedder embeddings.Embedder, cfg Config, opts ...Option) *Engine {
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	size := cfg.VectorSize
	if size == 0 {
		size = DefaultVectorSize
	}

	e := &Engine{
		client:     client,
		embedder:   embedder,
		collection: collection,
		vectorSize: size,
		logger:     logger.Nop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "vector" }

// Capabilities implements engine.Engine.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.OperationInsert,
		engine.OperationDelete,
	}
}

// ensureCollection creates the collection on first use.
func (e *Engine) ensureCollection(ctx context.Context) error {
	if e.ready.Load() {
		return nil
	}

	e.initMu.Lock()
	defer e.initMu.Unlock()

	if e.ready.Load() {
		return nil
	}

	exists, err := e.client.CollectionExists(ctx, e.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if !exists {
		e.logger.Debug("creating qdrant collection", "collection", e.collection)
		err := e.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: e.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     e.vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}

	e.ready.Store(true)
	return nil
}

// Info reports the indexed point count.
func (e *Engine) Info(ctx context.Context) (*engine.InfoResponse, error) {
	if err := e.ensureCollection(ctx); err != nil {
		return nil, err
	}

	n, err := e.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: e.collection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}

	return &engine.InfoResponse{
		Engine:  e.Name(),
		Records: int(n),
		Metadata: map[string]string{
			"collection":  e.collection,
			"vector_size": strconv.FormatUint(e.vectorSize, 10),
			"search":      "semantic",
		},
		Instructions: instructions,
	}, nil
}

// Query embeds the query text and runs a nearest-neighbor search.
// Result scores are cosine similarities straight from the index.
func (e *Engine) Query(ctx context.Context, query string, limit int) (*engine.QueryResponse, error) {
	if err := e.ensureCollection(ctx); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = store.DefaultSearchLimit
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	points, err := e.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: e.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	results := make([]engine.QueryResult, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()

		result := engine.QueryResult{
			ID:      payload["record_id"].GetStringValue(),
			Content: payload["content"].GetStringValue(),
			Source:  payload["source"].GetStringValue(),
			Score:   float64(p.GetScore()),
		}
		if ts := payload["created_at"].GetStringValue(); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				result.CreatedAt = t
			}
		}

		results = append(results, result)
	}

	return &engine.QueryResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

// Insert embeds the record content and upserts its point. The point id
// is a deterministic UUID derived from the record id, so re-indexing the
// same record overwrites rather than duplicates.
func (e *Engine) Insert(ctx context.Context, r *store.Record) error {
	if err := e.ensureCollection(ctx); err != nil {
		return err
	}

	vec, err := e.embedder.Embed(ctx, r.Content)
	if err != nil {
		return err
	}

	_, err = e.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: e.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				"record_id":  r.ID,
				"content":    r.Content,
				"source":     r.Source,
				"created_at": r.CreatedAt.UTC().Format(time.RFC3339),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// Delete removes the record's point.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if err := e.ensureCollection(ctx); err != nil {
		return err
	}

	_, err := e.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: e.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(pointID(id))),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}

	return nil
}

// Close closes the Qdrant connection. The embedder is owned by the
// caller.
func (e *Engine) Close() error {
	return e.client.Close()
}

// pointID maps an arbitrary record id onto the UUID space Qdrant
// requires for point ids.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String()
}

var (
	_ engine.Engine   = (*Engine)(nil)
	_ engine.Inserter = (*Engine)(nil)
	_ engine.Deleter  = (*Engine)(nil)
)
