package main

import (
	"context"
	"encoding/binary"

	"github.com/sdrflow/flowgraph"
	"github.com/sdrflow/flowgraph/flowlog"
)

// int32Type is the smallest possible DataType implementation - four-byte
// little-endian integers - used only to give this demo graph something
// concrete to flow. Real numeric sample types live outside this module
// entirely.
type int32Type struct{}

func (int32Type) Size() int             { return 4 }
func (int32Type) Equal(t flowgraph.DataType) bool { _, ok := t.(int32Type); return ok }
func (int32Type) String() string        { return "int32" }

// countSource emits a fixed number of single-sample vectors counting up
// from zero, then signals EOF.
type countSource struct {
	flowgraph.BaseBlock
	remaining int
	n         int32
}

func newCountSource(name string, count int) *countSource {
	s := &countSource{remaining: count}
	s.BaseBlock = flowgraph.NewBaseBlock(s, name, []flowgraph.TypeSignature{{
		Outputs: []flowgraph.PortSpec{{Name: "out", Type: int32Type{}}},
	}})
	flowgraph.RegisterBlock(s)
	return s
}

func (s *countSource) Rate() int          { return 1000 }
func (s *countSource) Initialize() error  { return nil }
func (s *countSource) Cleanup() error     { return nil }

func (s *countSource) RunOnce() (flowgraph.Outcome, error) {
	if s.remaining <= 0 {
		return flowgraph.EOF, nil
	}
	v := flowgraph.NewVector(int32Type{}, 1)
	binary.LittleEndian.PutUint32(v.Data, uint32(s.n))
	s.n++
	s.remaining--
	out := s.OutputPort("out")
	if err := out.Write(v); err != nil {
		return flowgraph.Idle, err
	}
	return flowgraph.Produced, nil
}

func (s *countSource) Run(ctx context.Context) error {
	for {
		outcome, err := s.RunOnce()
		if err != nil {
			return err
		}
		if outcome == flowgraph.EOF {
			return nil
		}
	}
}

// logSink reads every vector it receives and logs its value, until EOF.
type logSink struct {
	flowgraph.BaseBlock
}

func newLogSink(name string) *logSink {
	s := &logSink{}
	s.BaseBlock = flowgraph.NewBaseBlock(s, name, []flowgraph.TypeSignature{{
		Inputs: []flowgraph.PortSpec{{Name: "in", Type: int32Type{}}},
	}})
	flowgraph.RegisterBlock(s)
	return s
}

func (s *logSink) Rate() int         { return s.InputPort("in").Rate() }
func (s *logSink) Initialize() error { return nil }
func (s *logSink) Cleanup() error    { return nil }

func (s *logSink) RunOnce() (flowgraph.Outcome, error) {
	v, err := s.InputPort("in").Read()
	if err != nil {
		return flowgraph.EOF, nil
	}
	if v.N == 0 {
		return flowgraph.Idle, nil
	}
	flowlog.Debugf("sink %s received sample %d", s.Name(), binary.LittleEndian.Uint32(v.Data))
	return flowgraph.Produced, nil
}

func (s *logSink) Run(ctx context.Context) error {
	for {
		outcome, err := s.RunOnce()
		if err != nil {
			return err
		}
		if outcome == flowgraph.EOF {
			return nil
		}
	}
}

// buildGraph wires one source to one sink - just enough to exercise
// topology construction, differentiation, and the process driver's self
// re-exec path end to end under the default configuration main uses.
func buildGraph() (*flowgraph.Composite, error) {
	src := newCountSource("source", 10)
	sink := newLogSink("sink")

	c := flowgraph.NewComposite("root")
	if err := c.Connect(src, sink); err != nil {
		return nil, err
	}
	return c, nil
}
