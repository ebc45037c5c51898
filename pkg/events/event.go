package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordPersisted is emitted after a record is committed to the
	// canonical store.
	EventTypeRecordPersisted = "engram.record.persisted"

	// EventTypeRecordDeleted is emitted after a record is removed from the
	// canonical store.
	EventTypeRecordDeleted = "engram.record.deleted"

	// EventTypeEngineSyncFailed is emitted when an engine fails to apply a
	// mutation that the canonical store already committed. The canonical
	// write stands; this event is how the divergence becomes observable.
	EventTypeEngineSyncFailed = "engram.engine.sync_failed"
)

// Event is a transport-neutral mutation event payload.
type Event struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	Engine        string    `json:"engine"`
	RecordID      string    `json:"record_id,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	Source        string    `json:"source,omitempty"`
	Operation     string    `json:"operation,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func newEvent(eventType, engine string) *Event {
	return &Event{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Engine:        engine,
	}
}

// NewRecordPersisted builds a record.persisted event.
func NewRecordPersisted(engine, recordID, contentType, source string) *Event {
	e := newEvent(EventTypeRecordPersisted, engine)
	e.RecordID = recordID
	e.ContentType = contentType
	e.Source = source

	return e
}

// NewRecordDeleted builds a record.deleted event.
func NewRecordDeleted(engine, recordID string) *Event {
	e := newEvent(EventTypeRecordDeleted, engine)
	e.RecordID = recordID

	return e
}

// NewEngineSyncFailed builds an engine.sync_failed event for a swallowed
// engine-side mutation failure.
func NewEngineSyncFailed(engine, recordID, operation string, err error) *Event {
	e := newEvent(EventTypeEngineSyncFailed, engine)
	e.RecordID = recordID
	e.Operation = operation
	if err != nil {
		e.Error = err.Error()
	}

	return e
}
