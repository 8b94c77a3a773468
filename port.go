package flowgraph

import "github.com/sdrflow/flowgraph/core"

// Vector is a fixed-layout contiguous sample buffer: N homogeneous samples
// of Type, each Type.Size() bytes wide, packed back to back in Data.
type Vector = core.Vector

// NewVector allocates a Vector able to hold n samples of t.
func NewVector(t DataType, n int) Vector { return core.NewVector(t, n) }

// Pipe is a one-writer/one-reader ordered byte channel carrying framed
// sample vectors between exactly one source output port and one
// destination input port.
type Pipe = core.Pipe

// OutputPort is owned by a block; it fans a produced Vector out across
// every pipe attached to it.
type OutputPort = core.OutputPort

// NewOutputPort creates an unconnected output port.
func NewOutputPort(owner Block, name string) *OutputPort { return core.NewOutputPort(owner, name) }

// InputPort is owned by a block; it holds the single pipe feeding it.
type InputPort = core.InputPort

// NewInputPort creates an unconnected input port.
func NewInputPort(owner Block, name string) *InputPort { return core.NewInputPort(owner, name) }

func blockName(b Block) string {
	if b == nil {
		return "<nil>"
	}
	return b.Name()
}
