package flowgraph

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestGinkgoSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "composite aliasing suite")
}

var _ = Describe("a composite's own ports", func() {
	var (
		source *fakeBlock
		sink1  *fakeBlock
		sink2  *fakeBlock
		inner  *Composite
		outer  *Composite
	)

	BeforeEach(func() {
		source = newFakeBlock("source", 1000, []TypeSignature{realSig(0, 1)})
		sink1 = newFakeBlock("sink1", 1000, []TypeSignature{realSig(1, 0)})
		sink2 = newFakeBlock("sink2", 1000, []TypeSignature{realSig(1, 0)})

		inner = NewComposite("inner")
		Expect(inner.AddTypeSignature([]PortSpec{{Name: "x", Type: fakeReal}}, nil)).To(Succeed())
		Expect(inner.ConnectNamed(inner, "x", sink1, "in")).To(Succeed())
		Expect(inner.ConnectNamed(inner, "x", sink2, "in")).To(Succeed())

		outer = NewComposite("outer")
	})

	Context("when an outside source connects to an aliased input", func() {
		BeforeEach(func() {
			Expect(outer.ConnectNamed(source, "out", inner, "x")).To(Succeed())
		})

		It("fans the connection out to every aliased target", func() {
			outer.crawl()
			Expect(outer.conns[sink1.InputPort("in")]).To(BeIdenticalTo(source.OutputPort("out")))
			Expect(outer.conns[sink2.InputPort("in")]).To(BeIdenticalTo(source.OutputPort("out")))
		})

		It("discovers every block reachable through the alias", func() {
			blocks := outer.crawl()
			names := make([]string, len(blocks))
			for i, b := range blocks {
				names[i] = b.Name()
			}
			Expect(names).To(ConsistOf("source", "sink1", "sink2"))
		})
	})

	Context("when a name was never declared via AddTypeSignature", func() {
		It("rejects a connection to that name", func() {
			err := outer.ConnectNamed(source, "out", outer, "nonexistent")
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(ErrMalformedConnection))
		})
	})

	Context("when a composite's own port is connected to itself", func() {
		It("is rejected as malformed", func() {
			err := outer.ConnectNamed(outer, "x", outer, "x")
			Expect(err).To(HaveOccurred())
			Expect(err).To(MatchError(ErrMalformedConnection))
		})
	})
})

var _ = Describe("a composite's own output alias", func() {
	It("cannot be bound twice", func() {
		child := newFakeBlock("child", 1000, []TypeSignature{realSig(0, 1)})
		other := newFakeBlock("other", 1000, []TypeSignature{realSig(0, 1)})

		c := NewComposite("c")
		Expect(c.AddTypeSignature(nil, []PortSpec{{Name: "y", Type: fakeReal}})).To(Succeed())
		Expect(c.ConnectNamed(child, "out", c, "y")).To(Succeed())

		err := c.ConnectNamed(other, "out", c, "y")
		Expect(err).To(HaveOccurred())
		Expect(err).To(MatchError(ErrMalformedConnection))
	})
})
