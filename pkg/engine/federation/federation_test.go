package federation_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/engine/federation"
)

func TestFederation(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Federation Engine Suite")
}

// fakeSource is a scripted read-only engine.
type fakeSource struct {
	name     string
	records  int
	results  []engine.QueryResult
	infoErr  error
	queryErr error
	closed   bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Capabilities() engine.Capabilities {
	return engine.Capabilities{engine.OperationInfo, engine.OperationQuery}
}

func (f *fakeSource) Info(context.Context) (*engine.InfoResponse, error) {
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	return &engine.InfoResponse{Engine: f.name, Records: f.records}, nil
}

func (f *fakeSource) Query(_ context.Context, query string, _ int) (*engine.QueryResponse, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &engine.QueryResponse{Query: query, Results: f.results, Total: len(f.results)}, nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("requires at least one source", func() {
		_, err := federation.New(nil)
		Expect(err).To(MatchError(ContainSubstring("at least one source")))
	})

	It("rejects duplicate source names", func() {
		_, err := federation.New([]engine.Engine{
			&fakeSource{name: "a"},
			&fakeSource{name: "a"},
		})
		Expect(err).To(MatchError(ContainSubstring("duplicate federation source name")))
	})

	It("passes registration validation and is read-only", func() {
		e, err := federation.New([]engine.Engine{&fakeSource{name: "a"}})
		Expect(err).NotTo(HaveOccurred())

		Expect(engine.Validate(e)).To(Succeed())
		Expect(e.Capabilities()).To(HaveLen(2))
	})

	It("prefixes result ids with their source name", func() {
		e, err := federation.New([]engine.Engine{
			&fakeSource{name: "team", results: []engine.QueryResult{{ID: "r1", Content: "team fact"}}},
			&fakeSource{name: "personal", results: []engine.QueryResult{{ID: "r2", Content: "personal fact"}}},
		})
		Expect(err).NotTo(HaveOccurred())

		resp, err := e.Query(ctx, "fact", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Total).To(Equal(2))

		ids := []string{resp.Results[0].ID, resp.Results[1].ID}
		Expect(ids).To(ConsistOf("team:r1", "personal:r2"))
	})

	It("excludes failing sources and keeps the healthy ones", func() {
		e, err := federation.New([]engine.Engine{
			&fakeSource{name: "down", queryErr: errors.New("unreachable")},
			&fakeSource{name: "up", results: []engine.QueryResult{{ID: "r1", Content: "still here"}}},
		})
		Expect(err).NotTo(HaveOccurred())

		resp, err := e.Query(ctx, "anything", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Total).To(Equal(1))
		Expect(resp.Results[0].ID).To(Equal("up:r1"))
	})

	It("fails the query only when every source fails", func() {
		e, err := federation.New([]engine.Engine{
			&fakeSource{name: "a", queryErr: errors.New("boom")},
			&fakeSource{name: "b", queryErr: errors.New("boom")},
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Query(ctx, "anything", 10)
		Expect(err).To(MatchError(ContainSubstring("all federation sources failed")))
	})

	It("aggregates record counts in info and marks unavailable sources", func() {
		e, err := federation.New([]engine.Engine{
			&fakeSource{name: "a", records: 3},
			&fakeSource{name: "b", infoErr: errors.New("unreachable")},
		})
		Expect(err).NotTo(HaveOccurred())

		info, err := e.Info(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Records).To(Equal(3))
		Expect(info.Metadata["source.b"]).To(Equal("unavailable"))
		Expect(info.Metadata["sources"]).To(Equal("2"))
	})

	It("closes every source", func() {
		a := &fakeSource{name: "a"}
		b := &fakeSource{name: "b"}

		e, err := federation.New([]engine.Engine{a, b})
		Expect(err).NotTo(HaveOccurred())

		Expect(e.Close()).To(Succeed())
		Expect(a.closed).To(BeTrue())
		Expect(b.closed).To(BeTrue())
	})
})
