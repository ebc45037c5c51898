package store

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// These specs drive the inverted-index path directly, so they hold
// whether or not the driver was built with FTS5 compiled in.
var _ = Describe("sqlite fallback index", func() {
	var (
		ctx context.Context
		b   *sqliteBackend
	)

	insert := func(id, content, source string, at time.Time) {
		err := b.insert(ctx, &Record{
			ID:          id,
			Content:     content,
			ContentType: ContentTypeText,
			Source:      source,
			CreatedAt:   at,
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		b, err = newSQLiteBackend(":memory:")
		Expect(err).NotTo(HaveOccurred())

		_, err = b.db.ExecContext(ctx, sqliteBaseSchema)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.initFallback(ctx)).To(Succeed())
		Expect(b.fts).To(BeFalse())
	})

	AfterEach(func() {
		b.close()
	})

	It("finds records by AND of query words", func() {
		insert("a", "the quick brown fox", "notes.txt", time.Now())
		insert("b", "the slow brown turtle", "", time.Now())

		records, err := b.search(ctx, "brown fox", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal("a"))
	})

	It("matches terms from the source column", func() {
		insert("a", "meeting summary", "standup-2026.md", time.Now())

		records, err := b.search(ctx, "standup", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
	})

	It("requires quoted phrases to appear in order", func() {
		insert("a", "alpha beta gamma", "", time.Now())
		insert("b", "beta alpha gamma", "", time.Now())

		records, err := b.search(ctx, `"alpha beta"`, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal("a"))
	})

	It("supports trailing-star prefix matching", func() {
		insert("a", "reconciliation report", "", time.Now())
		insert("b", "recipe collection", "", time.Now())

		records, err := b.search(ctx, "recon*", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].ID).To(Equal("a"))
	})

	It("orders matches newest first", func() {
		base := time.Now()
		insert("old", "shared term", "", base.Add(-time.Hour))
		insert("new", "shared term", "", base)

		records, err := b.search(ctx, "shared", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].ID).To(Equal("new"))
		Expect(records[1].ID).To(Equal("old"))
	})

	It("returns nothing once the record is deleted", func() {
		insert("a", "ephemeral content", "", time.Now())

		found, err := b.delete(ctx, "a")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())

		records, err := b.search(ctx, "ephemeral", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())

		var n int
		err = b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records_terms`).Scan(&n)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero(), "index terms must go with the record")
	})

	It("returns empty for a query with no indexable terms", func() {
		insert("a", "something", "", time.Now())

		records, err := b.search(ctx, "!!! ---", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(BeEmpty())
	})

	It("reports a duplicate id as a conflict", func() {
		insert("dup", "first", "", time.Now())

		err := b.insert(ctx, &Record{
			ID:          "dup",
			Content:     "second",
			ContentType: ContentTypeText,
			CreatedAt:   time.Now(),
		})
		var conflict *ConflictError
		Expect(errors.As(err, &conflict)).To(BeTrue())
	})
})

var _ = Describe("query tokenization", func() {
	It("lowercases and splits on non-alphanumerics", func() {
		Expect(tokenize("Hello, World-42!")).To(Equal([]string{"hello", "world", "42"}))
	})

	It("separates phrases from prefix-marked terms", func() {
		terms, phrases := parseTermQuery(`"Brown Fox" jum*`)
		Expect(phrases).To(Equal([]string{"brown fox"}))
		Expect(terms).To(Equal([]queryTerm{
			{text: "jum", prefix: true},
			{text: "brown"},
			{text: "fox"},
		}))
	})
})
