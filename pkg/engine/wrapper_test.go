package engine_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/events"
	"github.com/engramco/engram/pkg/store"
)

func newWrapperStore() *store.Canonical {
	s, err := store.New(store.Config{
		DatabaseURL:     ":memory:",
		AttachmentsPath: filepath.Join(GinkgoT().TempDir(), "attachments"),
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Wrapper", func() {
	var (
		ctx context.Context
		s   *store.Canonical
		pub *capturePublisher
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newWrapperStore()
		pub = &capturePublisher{}
	})

	AfterEach(func() {
		s.Close()
	})

	wrap := func(e engine.Engine) *engine.Wrapper {
		w, err := engine.NewWrapper(e, s, engine.WithPublisher(pub))
		Expect(err).NotTo(HaveOccurred())
		return w
	}

	Describe("NewWrapper", func() {
		It("rejects an engine that fails validation", func() {
			_, err := engine.NewWrapper(&misdeclaredEngine{}, s)
			Expect(err).To(MatchError(ContainSubstring("does not implement")))
		})
	})

	Describe("Capabilities", func() {
		It("fills every gap for a read-only engine", func() {
			w := wrap(&readOnlyEngine{name: "ro"})

			caps := w.Capabilities()
			Expect(caps).To(HaveLen(7))
			for _, op := range []engine.Operation{
				engine.OperationInfo, engine.OperationQuery,
				engine.OperationInsert, engine.OperationInsertFile,
				engine.OperationDelete, engine.OperationGetRecord,
				engine.OperationListRecords,
			} {
				Expect(caps.Has(op)).To(BeTrue(), "missing %s", op)
			}
		})

		It("keeps native capabilities without duplication", func() {
			w := wrap(&indexingEngine{})
			Expect(w.Capabilities()).To(HaveLen(7))
		})
	})

	Describe("Insert", func() {
		It("commits canonically and hands the committed record to the engine", func() {
			e := &indexingEngine{}
			w := wrap(e)

			resp, err := w.Insert(ctx, "remember this", "", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.ID).To(HaveLen(36))

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).NotTo(BeNil())

			Expect(e.inserted).To(HaveLen(1))
			Expect(e.inserted[0].ID).To(Equal(resp.ID))
			Expect(e.inserted[0].Content).To(Equal("remember this"))
			Expect(e.inserted[0].CreatedAt).NotTo(BeZero())

			persisted := pub.byType(events.EventTypeRecordPersisted)
			Expect(persisted).To(HaveLen(1))
			Expect(persisted[0].RecordID).To(Equal(resp.ID))
		})

		It("succeeds and reports when the engine index fails", func() {
			e := &indexingEngine{insertErr: errors.New("index offline")}
			w := wrap(e)

			resp, err := w.Insert(ctx, "survives engine failure", "", "")
			Expect(err).NotTo(HaveOccurred())

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).NotTo(BeNil(), "canonical record must survive the engine failure")

			failed := pub.byType(events.EventTypeEngineSyncFailed)
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Operation).To(Equal("insert"))
			Expect(failed[0].Error).To(ContainSubstring("index offline"))
		})

		It("never calls the engine for a read-only backend", func() {
			w := wrap(&readOnlyEngine{name: "ro"})

			resp, err := w.Insert(ctx, "synthesized", "", "")
			Expect(err).NotTo(HaveOccurred())

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Content).To(Equal("synthesized"))
		})

		It("propagates canonical conflicts without touching the engine", func() {
			e := &indexingEngine{}
			w := wrap(e)

			_, err := w.Insert(ctx, "first", "dup", "")
			Expect(err).NotTo(HaveOccurred())

			_, err = w.Insert(ctx, "second", "dup", "")
			var conflict *store.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(e.inserted).To(HaveLen(1))
		})
	})

	Describe("InsertFile", func() {
		It("materializes the attachment and hands the engine its absolute path", func() {
			e := &indexingEngine{}
			w := wrap(e)

			resp, err := w.InsertFile(ctx, "doc.txt", []byte("file body"), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(e.insertedFiles).To(HaveLen(1))
			Expect(e.insertedFiles[0]).To(BeARegularFile())

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.ContentType).To(Equal(store.ContentTypeFile))
		})
	})

	Describe("Delete", func() {
		It("runs engine cleanup before the canonical delete", func() {
			e := &indexingEngine{store: s}
			w := wrap(e)

			resp, err := w.Insert(ctx, "to be deleted", "", "")
			Expect(err).NotTo(HaveOccurred())

			del, err := w.Delete(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(del.Found).To(BeTrue())

			Expect(e.deleted).To(Equal([]string{resp.ID}))
			Expect(e.deleteSawRecord).To(BeTrue(), "engine cleanup must run while the record still exists")

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNil())

			Expect(pub.byType(events.EventTypeRecordDeleted)).To(HaveLen(1))
		})

		It("still deletes canonically when engine cleanup fails", func() {
			e := &indexingEngine{deleteErr: errors.New("cleanup failed")}
			w := wrap(e)

			resp, err := w.Insert(ctx, "doomed", "", "")
			Expect(err).NotTo(HaveOccurred())

			del, err := w.Delete(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(del.Found).To(BeTrue())

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNil())

			Expect(pub.byType(events.EventTypeEngineSyncFailed)).NotTo(BeEmpty())
		})

		It("reports a missing id as not found without an event", func() {
			w := wrap(&readOnlyEngine{name: "ro"})

			del, err := w.Delete(ctx, "ghost")
			Expect(err).NotTo(HaveOccurred())
			Expect(del.Found).To(BeFalse())
			Expect(pub.byType(events.EventTypeRecordDeleted)).To(BeEmpty())
		})
	})

	Describe("GetRecord", func() {
		It("serves from the canonical store", func() {
			w := wrap(&readOnlyEngine{name: "ro"})

			resp, err := w.Insert(ctx, "fetch me", "", "notes.txt")
			Expect(err).NotTo(HaveOccurred())

			got, err := w.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("fetch me"))
			Expect(got.Source).To(Equal("notes.txt"))
		})

		It("dispatches to an engine that declares get_record", func() {
			e := &listingEngine{records: []*store.Record{
				{ID: "native-1", Content: "from the engine", ContentType: store.ContentTypeText},
			}}
			w := wrap(e)

			got, err := w.GetRecord(ctx, "native-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("from the engine"))
		})

		It("fails with NotFound on a miss", func() {
			w := wrap(&readOnlyEngine{name: "ro"})

			_, err := w.GetRecord(ctx, "missing")
			var notFound *store.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Describe("ListRecords", func() {
		It("pages with truncated previews and a total", func() {
			w := wrap(&readOnlyEngine{name: "ro"})

			long := strings.Repeat("x", engine.PreviewLength+50)
			_, err := w.Insert(ctx, long, "long", "")
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 3; i++ {
				_, err := w.Insert(ctx, fmt.Sprintf("short %d", i), "", "")
				Expect(err).NotTo(HaveOccurred())
			}

			resp, err := w.ListRecords(ctx, 2, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Records).To(HaveLen(2))
			Expect(resp.Total).To(Equal(4))
			Expect(resp.Limit).To(Equal(2))

			all, err := w.ListRecords(ctx, 10, 0)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range all.Records {
				if r.ID == "long" {
					Expect(r.Preview).To(HaveSuffix("..."))
					Expect(len(r.Preview)).To(Equal(engine.PreviewLength + 3))
				}
			}
		})
	})

	Describe("ListRecords dispatch", func() {
		It("serves the page from an engine that declares list_records", func() {
			e := &listingEngine{records: []*store.Record{
				{ID: "a", Content: "alpha", ContentType: store.ContentTypeText},
				{ID: "b", Content: "beta", ContentType: store.ContentTypeText},
			}}
			w := wrap(e)

			resp, err := w.ListRecords(ctx, 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Records).To(HaveLen(1))
			Expect(resp.Records[0].ID).To(Equal("b"))
		})
	})

	Describe("capability drift", func() {
		newDrifting := func() (*driftingEngine, *engine.Wrapper) {
			e := &driftingEngine{}
			e.setCaps(engine.Capabilities{engine.OperationInfo, engine.OperationQuery})
			return e, wrap(e)
		}

		It("fails get_record with a typed error when the engine advertises it without serving it", func() {
			e, w := newDrifting()
			e.setCaps(engine.Capabilities{
				engine.OperationInfo, engine.OperationQuery, engine.OperationGetRecord,
			})

			_, err := w.GetRecord(ctx, "anything")
			var unsupported *engine.UnsupportedOperationError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
			Expect(unsupported.Op).To(Equal(engine.OperationGetRecord))
		})

		It("fails list_records the same way", func() {
			e, w := newDrifting()
			e.setCaps(engine.Capabilities{
				engine.OperationInfo, engine.OperationQuery, engine.OperationListRecords,
			})

			_, err := w.ListRecords(ctx, 10, 0)
			var unsupported *engine.UnsupportedOperationError
			Expect(errors.As(err, &unsupported)).To(BeTrue())
		})

		It("reports insert drift without failing the canonical write", func() {
			e, w := newDrifting()
			e.setCaps(engine.Capabilities{
				engine.OperationInfo, engine.OperationQuery, engine.OperationInsert,
			})

			resp, err := w.Insert(ctx, "still durable", "", "")
			Expect(err).NotTo(HaveOccurred())

			r, err := s.GetRecord(ctx, resp.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(r).NotTo(BeNil())

			failed := pub.byType(events.EventTypeEngineSyncFailed)
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Error).To(ContainSubstring("does not support"))
		})
	})

	Describe("mutation serialization", func() {
		It("never overlaps mutations for a serializing engine", func() {
			e := &serialEngine{}
			w := wrap(e)

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := w.Insert(ctx, fmt.Sprintf("concurrent %d", i), "", "")
					Expect(err).NotTo(HaveOccurred())
				}(i)
			}
			wg.Wait()

			Expect(e.overlap.Load()).To(BeFalse())
			Expect(e.inserted).To(HaveLen(8))
		})
	})
})
