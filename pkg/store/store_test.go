package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramco/engram/pkg/store"
)

func newTestStore() *store.Canonical {
	s, err := store.New(store.Config{
		DatabaseURL:     ":memory:",
		AttachmentsPath: filepath.Join(GinkgoT().TempDir(), "attachments"),
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Canonical", func() {
	var (
		ctx context.Context
		s   *store.Canonical
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = newTestStore()
	})

	AfterEach(func() {
		if s != nil {
			s.Close()
		}
	})

	Describe("Initialize", func() {
		It("is idempotent", func() {
			Expect(s.Initialize(ctx)).To(Succeed())
			Expect(s.Initialize(ctx)).To(Succeed())
		})

		It("is safe under concurrent first use", func() {
			var wg sync.WaitGroup
			errs := make([]error, 16)

			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = s.Initialize(ctx)
				}(i)
			}
			wg.Wait()

			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("runs implicitly before any operation", func() {
			// No explicit Initialize; the op must create the schema.
			n, err := s.CountRecords(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
		})
	})

	Describe("InsertRecord", func() {
		It("generates a 36-character UUID when no id is given", func() {
			id, err := s.InsertRecord(ctx, "hello world", "", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(HaveLen(36))
		})

		It("uses the caller-supplied id", func() {
			id, err := s.InsertRecord(ctx, "content", "my-id", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("my-id"))
		})

		It("rejects empty content", func() {
			_, err := s.InsertRecord(ctx, "  ", "", store.ContentTypeText, "")

			var invalid *store.InvalidArgumentError
			Expect(err).To(HaveOccurred())
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("fails on duplicate id without clobbering the original", func() {
			_, err := s.InsertRecord(ctx, "first", "dup", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())

			_, err = s.InsertRecord(ctx, "second", "dup", store.ContentTypeText, "")
			var conflict *store.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.ID).To(Equal("dup"))

			r, err := s.GetRecord(ctx, "dup")
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Content).To(Equal("first"))
		})
	})

	Describe("GetRecord", func() {
		It("round-trips all fields", func() {
			id, err := s.InsertRecord(ctx, "body text", "", store.ContentTypeText, "notes.txt")
			Expect(err).NotTo(HaveOccurred())

			r, err := s.GetRecord(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.ID).To(Equal(id))
			Expect(r.Content).To(Equal("body text"))
			Expect(r.ContentType).To(Equal(store.ContentTypeText))
			Expect(r.Source).To(Equal("notes.txt"))
			Expect(r.CreatedAt).NotTo(BeZero())
		})

		It("returns nil without error on miss", func() {
			r, err := s.GetRecord(ctx, "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(r).To(BeNil())
		})
	})

	Describe("DeleteRecord", func() {
		It("reports whether a row existed and is idempotent", func() {
			id, err := s.InsertRecord(ctx, "ephemeral", "", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())

			found, err := s.DeleteRecord(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())

			found, err = s.DeleteRecord(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})
	})

	Describe("ListRecords", func() {
		It("pages deterministically, newest first, covering all records exactly once", func() {
			const n = 10
			for i := 0; i < n; i++ {
				_, err := s.InsertRecord(ctx, fmt.Sprintf("record %02d", i), fmt.Sprintf("id-%02d", i), store.ContentTypeText, "")
				Expect(err).NotTo(HaveOccurred())
			}

			seen := map[string]bool{}
			var all []string
			for offset := 0; offset < n; offset += 3 {
				page, err := s.ListRecords(ctx, 3, offset)
				Expect(err).NotTo(HaveOccurred())
				for _, r := range page {
					Expect(seen[r.ID]).To(BeFalse(), "record %s appeared twice", r.ID)
					seen[r.ID] = true
					all = append(all, r.ID)
				}
			}

			Expect(all).To(HaveLen(n))
			// Insertion order reversed: newest first.
			Expect(all[0]).To(Equal("id-09"))
			Expect(all[n-1]).To(Equal("id-00"))
		})

		It("returns an empty slice for an out-of-range offset", func() {
			_, err := s.InsertRecord(ctx, "only one", "", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())

			page, err := s.ListRecords(ctx, 10, 500)
			Expect(err).NotTo(HaveOccurred())
			Expect(page).To(BeEmpty())
		})

		It("rejects negative pagination", func() {
			var invalid *store.InvalidArgumentError

			_, err := s.ListRecords(ctx, -1, 0)
			Expect(errors.As(err, &invalid)).To(BeTrue())

			_, err = s.ListRecords(ctx, 10, -1)
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})
	})

	Describe("Search", func() {
		It("finds inserted records by token and drops them after delete", func() {
			id, err := s.InsertRecord(ctx, "the quick brown fox", "", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())

			results, err := s.Search(ctx, "quick", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal(id))

			_, err = s.DeleteRecord(ctx, id)
			Expect(err).NotTo(HaveOccurred())

			results, err = s.Search(ctx, "quick", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("matches against source as well as content", func() {
			id, err := s.InsertRecord(ctx, "body", "", store.ContentTypeText, "quarterly-report.pdf")
			Expect(err).NotTo(HaveOccurred())

			results, err := s.Search(ctx, "quarterly", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal(id))
		})

		It("supports phrase and prefix queries", func() {
			_, err := s.InsertRecord(ctx, "alpha beta gamma", "r1", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = s.InsertRecord(ctx, "beta alpha gamma", "r2", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())

			phrase, err := s.Search(ctx, `"alpha beta"`, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(phrase).To(HaveLen(1))
			Expect(phrase[0].ID).To(Equal("r1"))

			prefix, err := s.Search(ctx, "gam*", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefix).To(HaveLen(2))
		})

		It("returns empty for an empty query, not all records", func() {
			_, err := s.InsertRecord(ctx, "something", "", store.ContentTypeText, "")
			Expect(err).NotTo(HaveOccurred())

			results, err := s.Search(ctx, "   ", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("treats zero matches as a normal result", func() {
			results, err := s.Search(ctx, "absent", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("InsertFile", func() {
		It("stores bytes content-addressed and records the relative path", func() {
			id, abs, err := s.InsertFile(ctx, "report.txt", []byte("ten bytes!"), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(abs).To(BeARegularFile())

			data, err := os.ReadFile(abs)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("ten bytes!")))

			r, err := s.GetRecord(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.ContentType).To(Equal(store.ContentTypeFile))
			Expect(r.Source).To(Equal("upload:report.txt"))
			Expect(filepath.Join(s.Attachments().Root(), r.Content)).To(Equal(abs))
		})

		It("dedupes identical content across inserts", func() {
			id1, abs1, err := s.InsertFile(ctx, "a.txt", []byte("same bytes"), "")
			Expect(err).NotTo(HaveOccurred())

			id2, abs2, err := s.InsertFile(ctx, "a.txt", []byte("same bytes"), "")
			Expect(err).NotTo(HaveOccurred())

			Expect(id2).NotTo(Equal(id1))
			Expect(abs2).To(Equal(abs1))

			entries, err := os.ReadDir(s.Attachments().Root())
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})

		It("reads from an absolute local path", func() {
			src := filepath.Join(GinkgoT().TempDir(), "local.txt")
			Expect(os.WriteFile(src, []byte("local file"), 0o644)).To(Succeed())

			id, abs, err := s.InsertFile(ctx, src, nil, "")
			Expect(err).NotTo(HaveOccurred())

			data, err := os.ReadFile(abs)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("local file")))

			r, err := s.GetRecord(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Source).To(Equal(src))
		})

		It("rejects relative local paths", func() {
			_, _, err := s.InsertFile(ctx, "relative/path.txt", nil, "")

			var invalid *store.InvalidArgumentError
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("fails with NotFound for a missing local path", func() {
			_, _, err := s.InsertFile(ctx, "/does/not/exist.txt", nil, "")

			var notFound *store.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})
})
