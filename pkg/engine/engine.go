// Package engine defines the pluggable memory backend abstraction: the
// Engine interface, its capability model, and the Wrapper that pairs any
// engine with the canonical store to present a uniform operation set.
//
// An engine is a derived view over canonical records. It declares the
// operations it serves natively; everything else the Wrapper synthesizes
// from the canonical store. Info and query are the two operations no
// wrapper can fake, so every engine must serve them itself.
package engine

import (
	"context"
	"fmt"

	"github.com/engramco/engram/pkg/store"
)

// Engine is a memory backend. Implementations declare their native
// operations via Capabilities and pick up the optional mutation and read
// interfaces below for each operation they declare.
type Engine interface {
	// Name identifies the engine, e.g. "canonical" or "vector".
	Name() string

	// Capabilities returns the operations this engine serves natively.
	// It must include info and query and must not change over the
	// engine's lifetime.
	Capabilities() Capabilities

	// Info describes the backend and its current contents.
	Info(ctx context.Context) (*InfoResponse, error)

	// Query runs a search against the engine's own index.
	Query(ctx context.Context, query string, limit int) (*QueryResponse, error)

	// Close releases engine resources.
	Close() error
}

// Inserter is implemented by engines that index inserted records. The
// record has already been committed to the canonical store.
type Inserter interface {
	Insert(ctx context.Context, record *store.Record) error
}

// FileInserter is implemented by engines that index inserted files. The
// record's content is the attachment-relative path; path is absolute.
type FileInserter interface {
	InsertFile(ctx context.Context, record *store.Record, path string) error
}

// Deleter is implemented by engines that clean up their index on delete.
// It runs before the canonical delete.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// RecordGetter is implemented by engines that serve record fetches from
// their own storage instead of the canonical store.
type RecordGetter interface {
	GetRecord(ctx context.Context, id string) (*store.Record, error)
}

// RecordLister is implemented by engines that serve listings from their
// own storage instead of the canonical store.
type RecordLister interface {
	ListRecords(ctx context.Context, limit, offset int) ([]*store.Record, error)
}

// MutationSerializer marks engines whose index is not safe under
// concurrent mutation. The Wrapper serializes insert, insert_file and
// delete for engines that carry this marker.
type MutationSerializer interface {
	SerializeMutations()
}

// operationIface maps each optional operation to a check for its
// interface.
var operationIface = map[Operation]func(Engine) bool{
	OperationInsert:      func(e Engine) bool { _, ok := e.(Inserter); return ok },
	OperationInsertFile:  func(e Engine) bool { _, ok := e.(FileInserter); return ok },
	OperationDelete:      func(e Engine) bool { _, ok := e.(Deleter); return ok },
	OperationGetRecord:   func(e Engine) bool { _, ok := e.(RecordGetter); return ok },
	OperationListRecords: func(e Engine) bool { _, ok := e.(RecordLister); return ok },
}

// Validate checks an engine's declared capabilities at registration time:
// the required operations must be declared, every declared operation must
// be a known one, and every declared optional operation must have its
// interface implemented. A mismatch is a programming error in the engine,
// so it fails here rather than at first call.
func Validate(e Engine) error {
	caps := e.Capabilities()

	for _, op := range requiredOperations {
		if !caps.Has(op) {
			return fmt.Errorf("engine %q must declare the %s operation", e.Name(), op)
		}
	}

	for _, op := range caps {
		switch op {
		case OperationInfo, OperationQuery:
			continue
		}

		check, known := operationIface[op]
		if !known {
			return fmt.Errorf("engine %q declares unknown operation %q", e.Name(), op)
		}
		if !check(e) {
			return fmt.Errorf("engine %q declares %s but does not implement it", e.Name(), op)
		}
	}

	return nil
}
