package engine_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/engramco/engram/pkg/engine"
)

var _ = Describe("Validate", func() {
	It("accepts a read-only engine", func() {
		Expect(engine.Validate(&readOnlyEngine{name: "ro"})).To(Succeed())
	})

	It("accepts an engine whose declared mutations are implemented", func() {
		Expect(engine.Validate(&indexingEngine{})).To(Succeed())
	})

	It("rejects an engine missing a required operation", func() {
		err := engine.Validate(&queryOnlyEngine{})
		Expect(err).To(MatchError(ContainSubstring("must declare the info operation")))
	})

	It("rejects a declared operation with no implementation", func() {
		err := engine.Validate(&misdeclaredEngine{})
		Expect(err).To(MatchError(ContainSubstring("declares insert but does not implement it")))
	})

	It("rejects unknown operations", func() {
		err := engine.Validate(&unknownOpEngine{})
		Expect(err).To(MatchError(ContainSubstring(`unknown operation "compact"`)))
	})
})

var _ = Describe("Capabilities", func() {
	It("reports membership", func() {
		caps := engine.Capabilities{engine.OperationInfo, engine.OperationQuery}

		Expect(caps.Has(engine.OperationInfo)).To(BeTrue())
		Expect(caps.Has(engine.OperationDelete)).To(BeFalse())
	})

	It("converts to strings in set order", func() {
		caps := engine.Capabilities{engine.OperationQuery, engine.OperationInsert}
		Expect(caps.Strings()).To(Equal([]string{"query", "insert"}))
	})
})
