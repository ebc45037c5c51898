package events_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramco/engram/pkg/events"
)

var _ = Describe("Event", func() {
	It("builds record.persisted events with identity and payload fields", func() {
		e := events.NewRecordPersisted("canonical", "rec-1", "text", "notes.txt")

		Expect(e.SchemaVersion).To(Equal(events.SchemaVersionV1))
		Expect(e.EventType).To(Equal(events.EventTypeRecordPersisted))
		Expect(e.EventID).To(HavePrefix("evt_"))
		Expect(e.EmittedAt).NotTo(BeZero())
		Expect(e.Engine).To(Equal("canonical"))
		Expect(e.RecordID).To(Equal("rec-1"))
		Expect(e.ContentType).To(Equal("text"))
		Expect(e.Source).To(Equal("notes.txt"))
	})

	It("builds record.deleted events", func() {
		e := events.NewRecordDeleted("markdown", "rec-2")

		Expect(e.EventType).To(Equal(events.EventTypeRecordDeleted))
		Expect(e.Engine).To(Equal("markdown"))
		Expect(e.RecordID).To(Equal("rec-2"))
	})

	It("captures the failure reason in engine.sync_failed events", func() {
		e := events.NewEngineSyncFailed("vector", "rec-3", "insert", errors.New("index offline"))

		Expect(e.EventType).To(Equal(events.EventTypeEngineSyncFailed))
		Expect(e.Operation).To(Equal("insert"))
		Expect(e.Error).To(Equal("index offline"))
	})

	It("marshals with expected top-level keys and omits empty optionals", func() {
		e := events.NewRecordDeleted("canonical", "rec-4")

		payload, err := json.Marshal(e)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("engine"))
		Expect(got).To(HaveKey("record_id"))
		Expect(got).NotTo(HaveKey("operation"))
		Expect(got).NotTo(HaveKey("error"))
	})

	It("defines stable event constants", func() {
		Expect(events.EventTypeRecordPersisted).To(Equal("engram.record.persisted"))
		Expect(events.EventTypeRecordDeleted).To(Equal("engram.record.deleted"))
		Expect(events.EventTypeEngineSyncFailed).To(Equal("engram.engine.sync_failed"))
	})
})
