package engine_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/events"
	"github.com/engramco/engram/pkg/store"
)

// readOnlyEngine serves only the required operations.
type readOnlyEngine struct {
	name string
}

func (e *readOnlyEngine) Name() string { return e.name }

func (e *readOnlyEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{engine.OperationInfo, engine.OperationQuery}
}

func (e *readOnlyEngine) Info(_ context.Context) (*engine.InfoResponse, error) {
	return &engine.InfoResponse{Engine: e.name}, nil
}

func (e *readOnlyEngine) Query(_ context.Context, query string, _ int) (*engine.QueryResponse, error) {
	return &engine.QueryResponse{Query: query, Results: []engine.QueryResult{}}, nil
}

func (e *readOnlyEngine) Close() error { return nil }

// indexingEngine declares the mutation operations and records every call.
// When store is set, delete asserts the canonical record still exists at
// cleanup time.
type indexingEngine struct {
	readOnlyEngine

	store *store.Canonical

	mu              sync.Mutex
	inserted        []*store.Record
	insertedFiles   []string
	deleted         []string
	deleteSawRecord bool

	insertErr error
	deleteErr error
}

func (e *indexingEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.OperationInsert,
		engine.OperationInsertFile,
		engine.OperationDelete,
	}
}

func (e *indexingEngine) Insert(_ context.Context, record *store.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.insertErr != nil {
		return e.insertErr
	}

	e.inserted = append(e.inserted, record)
	return nil
}

func (e *indexingEngine) InsertFile(_ context.Context, _ *store.Record, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.insertedFiles = append(e.insertedFiles, path)
	return nil
}

func (e *indexingEngine) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleteErr != nil {
		return e.deleteErr
	}

	if e.store != nil {
		r, err := e.store.GetRecord(ctx, id)
		e.deleteSawRecord = err == nil && r != nil
	}

	e.deleted = append(e.deleted, id)
	return nil
}

// listingEngine serves get_record and list_records from its own canned
// records.
type listingEngine struct {
	readOnlyEngine

	records []*store.Record
}

func (e *listingEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.OperationGetRecord,
		engine.OperationListRecords,
	}
}

func (e *listingEngine) GetRecord(_ context.Context, id string) (*store.Record, error) {
	for _, r := range e.records {
		if r.ID == id {
			return r, nil
		}
	}

	return nil, nil
}

func (e *listingEngine) ListRecords(_ context.Context, limit, offset int) ([]*store.Record, error) {
	if offset >= len(e.records) {
		return []*store.Record{}, nil
	}

	end := offset + limit
	if end > len(e.records) {
		end = len(e.records)
	}

	return e.records[offset:end], nil
}

// misdeclaredEngine declares insert without implementing Inserter.
type misdeclaredEngine struct {
	readOnlyEngine
}

func (e *misdeclaredEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.OperationInsert,
	}
}

// driftingEngine starts read-only and can later advertise operations it
// never implements, the way a remote does when its far end changes.
type driftingEngine struct {
	readOnlyEngine

	mu   sync.Mutex
	caps engine.Capabilities
}

func (e *driftingEngine) Capabilities() engine.Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.caps
}

func (e *driftingEngine) setCaps(caps engine.Capabilities) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.caps = caps
}

// queryOnlyEngine omits the required info operation.
type queryOnlyEngine struct {
	readOnlyEngine
}

func (e *queryOnlyEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{engine.OperationQuery}
}

// unknownOpEngine declares an operation that doesn't exist.
type unknownOpEngine struct {
	readOnlyEngine
}

func (e *unknownOpEngine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.Operation("compact"),
	}
}

// serialEngine carries the serialization marker and trips overlap when
// two mutations run at once.
type serialEngine struct {
	indexingEngine

	active  atomic.Int32
	overlap atomic.Bool
}

func (e *serialEngine) SerializeMutations() {}

func (e *serialEngine) Insert(ctx context.Context, record *store.Record) error {
	if e.active.Add(1) > 1 {
		e.overlap.Store(true)
	}
	defer e.active.Add(-1)

	return e.indexingEngine.Insert(ctx, record)
}

// capturePublisher records published events in order.
type capturePublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *capturePublisher) Publish(_ context.Context, event *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) byType(eventType string) []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*events.Event
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}

	return out
}
