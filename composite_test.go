package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectChained(t *testing.T) {
	a := newFakeBlock("a", 1000, []TypeSignature{realSig(0, 1)})
	m := newFakeBlock("m", 1000, []TypeSignature{realSig(1, 1)})
	s := newFakeBlock("s", 1000, []TypeSignature{realSig(1, 0)})

	c := NewComposite("root")
	require.NoError(t, c.Connect(a, m, s))

	blocks := c.crawl()
	assert.Len(t, blocks, 3)
	assert.Len(t, c.conns, 2)
}

// TestDoubleConnectRejected checks that two calls connecting different
// outputs to the same input fail the second with a malformed-connection
// error, before any pipe is created.
func TestDoubleConnectRejected(t *testing.T) {
	a := newFakeBlock("a", 1000, []TypeSignature{realSig(0, 1)})
	b := newFakeBlock("b", 1000, []TypeSignature{realSig(0, 1)})
	s := newFakeBlock("s", 1000, []TypeSignature{realSig(1, 0)})

	c := NewComposite("root")
	require.NoError(t, c.ConnectNamed(a, "out", s, "in"))

	err := c.ConnectNamed(b, "out", s, "in")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedConnection)

	// the first connection must still be the one on record.
	assert.Same(t, s.InputPort("in"), onlyKey(c.conns))
	assert.Same(t, a.OutputPort("out"), c.conns[s.InputPort("in")])
}

func onlyKey(m map[*InputPort]*OutputPort) *InputPort {
	for k := range m {
		return k
	}
	return nil
}

// TestCompositeAliasFanOut checks that a composite's own input aliased to
// two children's inputs resolves, in the crawled connection set, to both
// children's inputs fed by the connected source's output.
func TestCompositeAliasFanOut(t *testing.T) {
	child1 := newFakeBlock("child1", 1000, []TypeSignature{realSig(1, 0)})
	child2 := newFakeBlock("child2", 1000, []TypeSignature{realSig(1, 0)})

	inner := NewComposite("inner")
	require.NoError(t, inner.AddTypeSignature(
		[]PortSpec{{Name: "x", Type: fakeReal}},
		nil,
	))
	require.NoError(t, inner.ConnectNamed(inner, "x", child1, "in"))
	require.NoError(t, inner.ConnectNamed(inner, "x", child2, "in"))

	source := newFakeBlock("source", 1000, []TypeSignature{realSig(0, 1)})

	outer := NewComposite("outer")
	require.NoError(t, outer.ConnectNamed(source, "out", inner, "x"))

	blocks := outer.crawl()
	assert.Len(t, blocks, 3)
	assert.Equal(t, source.OutputPort("out"), outer.conns[child1.InputPort("in")])
	assert.Equal(t, source.OutputPort("out"), outer.conns[child2.InputPort("in")])
}

// TestNestedOutputTakeover is the output half of aliasing: a nested
// composite's own output, once delegated, can be taken over by an
// enclosing composite's own output.
func TestNestedOutputTakeover(t *testing.T) {
	child := newFakeBlock("child", 1000, []TypeSignature{realSig(0, 1)})

	inner := NewComposite("inner")
	require.NoError(t, inner.AddTypeSignature(nil, []PortSpec{{Name: "y", Type: fakeReal}}))
	require.NoError(t, inner.ConnectNamed(child, "out", inner, "y"))

	outer := NewComposite("outer")
	require.NoError(t, outer.AddTypeSignature(nil, []PortSpec{{Name: "y", Type: fakeReal}}))
	require.NoError(t, outer.ConnectNamed(inner, "y", outer, "y"))

	alias, err := outer.ownOutput("y")
	require.NoError(t, err)
	assert.Same(t, child.OutputPort("out"), alias.delegate)
}

func TestCompileSimpleChainCooperative(t *testing.T) {
	src := newFakeBlock("src", 1000, []TypeSignature{realSig(0, 1)})
	src.outcomes = []Outcome{Produced, Produced, EOF}
	src.produced = []int32{1, 2}

	sink := newFakeBlock("sink", 1000, []TypeSignature{realSig(1, 0)})
	sink.outcomes = []Outcome{Produced, Produced, Produced}

	c := NewComposite("root")
	require.NoError(t, c.Connect(src, sink))

	g, err := c.Compile(Config{Multiprocess: false})
	require.NoError(t, err)
	require.NoError(t, g.Start())
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, src.initialized)
	assert.Equal(t, 1, sink.initialized)
	assert.Equal(t, 1, src.cleaned)
	assert.Equal(t, 1, sink.cleaned)
}

// TestCompileDerivedRatePropagates checks that a block whose Rate() reads
// its own input port, rather than a hardcoded field, sees the upstream
// rate during differentiation, before any pipe exists.
func TestCompileDerivedRatePropagates(t *testing.T) {
	src := newFakeBlock("src", 4000, []TypeSignature{realSig(0, 1)})
	src.outcomes = []Outcome{EOF}

	sink := newDerivedRateBlock("sink", []TypeSignature{realSig(1, 0)})

	c := NewComposite("root")
	require.NoError(t, c.Connect(src, sink))

	g, err := c.Compile(Config{Multiprocess: false})
	require.NoError(t, err)

	assert.Equal(t, 4000, sink.Rate())
	assert.Equal(t, 4000, sink.InputPort("in").Rate())
	_ = g
}

func TestCompileRateMismatch(t *testing.T) {
	a := newFakeBlock("a", 1000, []TypeSignature{realSig(0, 1)})
	b := newFakeBlock("b", 2000, []TypeSignature{realSig(0, 1)})
	m := newFakeBlock("m", 1000, []TypeSignature{realSig(2, 0)})

	c := NewComposite("root")
	require.NoError(t, c.ConnectNamed(a, "out", m, "in"))
	require.NoError(t, c.ConnectNamed(b, "out", m, "in1"))

	_, err := c.Compile(Config{Multiprocess: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateMismatch)
}

func TestCompileTypeMismatch(t *testing.T) {
	a := newFakeBlock("a", 1000, []TypeSignature{{Outputs: []PortSpec{{Name: "out", Type: fakeComplex}}}})
	m := newFakeBlock("m", 1000, []TypeSignature{realSig(1, 0)})

	c := NewComposite("root")
	require.NoError(t, c.ConnectNamed(a, "out", m, "in"))

	_, err := c.Compile(Config{Multiprocess: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestCompileUnconnectedInput(t *testing.T) {
	m := newFakeBlock("m", 1000, []TypeSignature{realSig(1, 0)})
	c := NewComposite("root")
	c.registerBlock(m)

	_, err := c.Compile(Config{Multiprocess: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTopology)
}
