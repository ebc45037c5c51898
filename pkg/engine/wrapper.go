package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/engramco/engram/pkg/events"
	"github.com/engramco/engram/pkg/events/nop"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/store"
	"github.com/engramco/engram/pkg/utils"
)

// PreviewLength is how much record content a list row carries.
const PreviewLength = 100

// Wrapper pairs an engine with the canonical store and presents the full
// effective operation set: the engine's native capabilities plus every
// synthesizable operation served from the canonical store.
//
// Mutations keep the canonical store authoritative. Insert commits the
// canonical record first and only then hands it to the engine's index; an
// engine-side failure is logged and published but never fails the insert,
// because the record is durable and the engine can rebuild. Delete runs
// engine cleanup first, while the record still exists to resolve, then
// removes the canonical row. Record fetches and listings go to the
// engine when it declares them and to the canonical store otherwise.
type Wrapper struct {
	engine    Engine
	store     *store.Canonical
	logger    *slog.Logger
	publisher events.Publisher

	// mutMu serializes mutations for MutationSerializer engines.
	mutMu     sync.Mutex
	serialize bool
}

// WrapperOption configures a Wrapper.
type WrapperOption func(*Wrapper)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) WrapperOption {
	return func(w *Wrapper) {
		w.logger = l
	}
}

// WithPublisher sets the mutation event publisher. Defaults to a nop
// publisher.
func WithPublisher(p events.Publisher) WrapperOption {
	return func(w *Wrapper) {
		w.publisher = p
	}
}

// NewWrapper validates the engine and wraps it. An engine whose declared
// capabilities don't match its implementation is rejected here.
func NewWrapper(e Engine, s *store.Canonical, opts ...WrapperOption) (*Wrapper, error) {
	if err := Validate(e); err != nil {
		return nil, err
	}

	_, serialize := e.(MutationSerializer)

	w := &Wrapper{
		engine:    e,
		store:     s,
		logger:    logger.Nop(),
		publisher: nop.NewPublisher(),
		serialize: serialize,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Engine returns the wrapped engine.
func (w *Wrapper) Engine() Engine { return w.engine }

// Name returns the wrapped engine's name.
func (w *Wrapper) Name() string { return w.engine.Name() }

// Capabilities returns the effective operation set: the engine's native
// capabilities with every synthesizable operation added. Info and query
// come from the engine alone.
func (w *Wrapper) Capabilities() Capabilities {
	native := w.engine.Capabilities()

	caps := make(Capabilities, 0, len(allOperations))
	for _, op := range allOperations {
		if native.Has(op) || synthesized(op) {
			caps = append(caps, op)
		}
	}

	return caps
}

func synthesized(op Operation) bool {
	for _, s := range synthesizedOperations {
		if s == op {
			return true
		}
	}

	return false
}

// Info delegates to the engine.
func (w *Wrapper) Info(ctx context.Context) (*InfoResponse, error) {
	return w.engine.Info(ctx)
}

// Query delegates to the engine.
func (w *Wrapper) Query(ctx context.Context, query string, limit int) (*QueryResponse, error) {
	return w.engine.Query(ctx, query, limit)
}

// Insert persists a text record canonically, then feeds it to the
// engine's index when the engine declares insert. The canonical write is
// the transaction boundary: once it commits the insert has succeeded, and
// an engine-side indexing failure is swallowed, logged, and published.
func (w *Wrapper) Insert(ctx context.Context, content, id, source string) (*InsertResponse, error) {
	if w.serialize {
		w.mutMu.Lock()
		defer w.mutMu.Unlock()
	}

	rid, err := w.store.InsertRecord(ctx, content, id, store.ContentTypeText, source)
	if err != nil {
		return nil, err
	}

	if w.engine.Capabilities().Has(OperationInsert) {
		ie, ok := w.engine.(Inserter)
		record, gerr := w.store.GetRecord(ctx, rid)
		switch {
		case !ok:
			w.reportSyncFailure(ctx, rid, OperationInsert, w.unsupported(OperationInsert))
		case gerr != nil:
			w.reportSyncFailure(ctx, rid, OperationInsert, gerr)
		case record != nil:
			if ierr := ie.Insert(ctx, record); ierr != nil {
				w.reportSyncFailure(ctx, rid, OperationInsert, ierr)
			}
		}
	}

	w.publish(ctx, events.NewRecordPersisted(w.Name(), rid, string(store.ContentTypeText), source))

	return &InsertResponse{
		ID:      rid,
		Message: "inserted record " + rid,
	}, nil
}

// InsertFile materializes the file into the attachment store, persists
// the file record canonically, then feeds it to the engine when the
// engine declares insert_file. Same failure contract as Insert.
//
// When data is non-nil, fileRef is the original filename and data the
// bytes; otherwise fileRef must be an absolute local path.
func (w *Wrapper) InsertFile(ctx context.Context, fileRef string, data []byte, id string) (*InsertResponse, error) {
	if w.serialize {
		w.mutMu.Lock()
		defer w.mutMu.Unlock()
	}

	rid, abs, err := w.store.InsertFile(ctx, fileRef, data, id)
	if err != nil {
		return nil, err
	}

	record, err := w.store.GetRecord(ctx, rid)
	if err != nil || record == nil {
		record = &store.Record{ID: rid, ContentType: store.ContentTypeFile}
	}

	if w.engine.Capabilities().Has(OperationInsertFile) {
		if fi, ok := w.engine.(FileInserter); !ok {
			w.reportSyncFailure(ctx, rid, OperationInsertFile, w.unsupported(OperationInsertFile))
		} else if err := fi.InsertFile(ctx, record, abs); err != nil {
			w.reportSyncFailure(ctx, rid, OperationInsertFile, err)
		}
	}

	w.publish(ctx, events.NewRecordPersisted(w.Name(), rid, string(store.ContentTypeFile), record.Source))

	return &InsertResponse{
		ID:      rid,
		Message: "inserted file record " + rid,
	}, nil
}

// Delete removes a record. Engine cleanup runs first, while the record
// still exists for the engine to resolve; a cleanup failure is reported
// but doesn't block the canonical delete. Deleting a missing id succeeds
// with Found false.
func (w *Wrapper) Delete(ctx context.Context, id string) (*DeleteResponse, error) {
	if w.serialize {
		w.mutMu.Lock()
		defer w.mutMu.Unlock()
	}

	if w.engine.Capabilities().Has(OperationDelete) {
		if de, ok := w.engine.(Deleter); !ok {
			w.reportSyncFailure(ctx, id, OperationDelete, w.unsupported(OperationDelete))
		} else if err := de.Delete(ctx, id); err != nil {
			w.reportSyncFailure(ctx, id, OperationDelete, err)
		}
	}

	found, err := w.store.DeleteRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := &DeleteResponse{ID: id, Found: found}
	if found {
		resp.Message = "deleted record " + id
		w.publish(ctx, events.NewRecordDeleted(w.Name(), id))
	} else {
		resp.Message = "record " + id + " not found"
	}

	return resp, nil
}

// GetRecord fetches a record, from the engine when it declares
// get_record and from the canonical store otherwise. A miss fails with
// *store.NotFoundError.
func (w *Wrapper) GetRecord(ctx context.Context, id string) (*GetRecordResponse, error) {
	var (
		record *store.Record
		err    error
	)

	if w.engine.Capabilities().Has(OperationGetRecord) {
		rg, ok := w.engine.(RecordGetter)
		if !ok {
			return nil, w.unsupported(OperationGetRecord)
		}
		record, err = rg.GetRecord(ctx, id)
	} else {
		record, err = w.store.GetRecord(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &store.NotFoundError{Ref: id}
	}

	return &GetRecordResponse{
		ID:          record.ID,
		Content:     record.Content,
		ContentType: string(record.ContentType),
		Source:      record.Source,
		CreatedAt:   record.CreatedAt,
	}, nil
}

// ListRecords pages records newest first, with truncated content
// previews and the canonical total for pagination. Engines declaring
// list_records serve the page themselves; the total is always canonical
// because the canonical store is the authority on what exists.
func (w *Wrapper) ListRecords(ctx context.Context, limit, offset int) (*ListResponse, error) {
	var (
		records []*store.Record
		err     error
	)

	if w.engine.Capabilities().Has(OperationListRecords) {
		rl, ok := w.engine.(RecordLister)
		if !ok {
			return nil, w.unsupported(OperationListRecords)
		}
		records, err = rl.ListRecords(ctx, limit, offset)
	} else {
		records, err = w.store.ListRecords(ctx, limit, offset)
	}
	if err != nil {
		return nil, err
	}

	total, err := w.store.CountRecords(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]RecordSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, RecordSummary{
			ID:          r.ID,
			ContentType: string(r.ContentType),
			Preview:     utils.Truncate(r.Content, PreviewLength),
			CreatedAt:   r.CreatedAt,
		})
	}

	if limit <= 0 {
		limit = store.DefaultListLimit
	}

	return &ListResponse{
		Records: summaries,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// Close closes the wrapped engine. The canonical store is owned by the
// caller and closed separately.
func (w *Wrapper) Close() error {
	return w.engine.Close()
}

func (w *Wrapper) unsupported(op Operation) *UnsupportedOperationError {
	return &UnsupportedOperationError{Engine: w.Name(), Op: op}
}

func (w *Wrapper) reportSyncFailure(ctx context.Context, recordID string, op Operation, err error) {
	w.logger.Warn("engine failed to apply mutation",
		"engine", w.Name(),
		"operation", string(op),
		"record_id", recordID,
		"error", err,
	)
	w.publish(ctx, events.NewEngineSyncFailed(w.Name(), recordID, string(op), err))
}

func (w *Wrapper) publish(ctx context.Context, event *events.Event) {
	if err := w.publisher.Publish(ctx, event); err != nil {
		w.logger.Warn("failed to publish event",
			"event_type", event.EventType,
			"record_id", event.RecordID,
			"error", err,
		)
	}
}
