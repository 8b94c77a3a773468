package flowgraph

import (
	"os"

	"github.com/rs/xid"
)

// BaseBlock is embedded by concrete block implementations for the
// bookkeeping every block needs: a stable name, its concrete input/output
// ports, the signature chosen for it at differentiation, and a unique id
// used only for diagnostics. It does not implement RunOnce, Run,
// Initialize or Cleanup - those remain the embedding block's job.
type BaseBlock struct {
	id      xid.ID
	name    string
	owner   Block
	sigs    []TypeSignature
	chosen  *TypeSignature
	inputs  []*InputPort
	outputs []*OutputPort
	files   []*os.File
}

// NewBaseBlock constructs a BaseBlock with the given name and declared
// signatures, and allocates concrete ports named after the first
// signature's port specs (every signature must agree on port names and
// count; only data types vary across signatures).
func NewBaseBlock(owner Block, name string, sigs []TypeSignature) BaseBlock {
	b := BaseBlock{id: xid.New(), name: name, owner: owner, sigs: sigs}
	if len(sigs) == 0 {
		return b
	}
	first := sigs[0]
	b.inputs = make([]*InputPort, len(first.Inputs))
	for i, spec := range first.Inputs {
		b.inputs[i] = NewInputPort(owner, spec.Name)
	}
	b.outputs = make([]*OutputPort, len(first.Outputs))
	for i, spec := range first.Outputs {
		b.outputs[i] = NewOutputPort(owner, spec.Name)
	}
	return b
}

// ID returns the block's process-unique diagnostic id.
func (b *BaseBlock) ID() xid.ID { return b.id }

// Name implements Block.
func (b *BaseBlock) Name() string { return b.name }

// TypeSignatures implements Block.
func (b *BaseBlock) TypeSignatures() []TypeSignature { return b.sigs }

// InputPorts returns the block's concrete input ports, in declared order.
func (b *BaseBlock) InputPorts() []*InputPort { return b.inputs }

// IsSource implements SourceBlock: true for a block with no declared input
// ports, the only kind the process driver signals directly on Stop.
func (b *BaseBlock) IsSource() bool { return len(b.inputs) == 0 }

// OutputPorts returns the block's concrete output ports, in declared
// order.
func (b *BaseBlock) OutputPorts() []*OutputPort { return b.outputs }

// InputPort looks up a concrete input port by name.
func (b *BaseBlock) InputPort(name string) *InputPort {
	for _, p := range b.inputs {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// OutputPort looks up a concrete output port by name.
func (b *BaseBlock) OutputPort(name string) *OutputPort {
	for _, p := range b.outputs {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// ChosenSignature returns the signature Differentiate selected, or nil if
// differentiation has not happened yet.
func (b *BaseBlock) ChosenSignature() *TypeSignature { return b.chosen }

// Differentiate implements Block. It picks the unique declared signature
// whose input types equal inputs pointwise, records it, and resolves the
// data type of every output port. Embedding blocks with a single signature
// rarely need to override this; multi-signature blocks (e.g. a Multiply
// that accepts either two complex or two real inputs) can still use it
// unmodified.
func (b *BaseBlock) Differentiate(inputs []DataType) error {
	for i := range b.sigs {
		sig := &b.sigs[i]
		if len(sig.Inputs) != len(inputs) {
			continue
		}
		match := true
		for j, spec := range sig.Inputs {
			if !spec.Type.Equal(inputs[j]) {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		b.chosen = sig
		var rate int
		if b.owner != nil {
			rate = b.owner.Rate()
		}
		for j, spec := range sig.Outputs {
			if j < len(b.outputs) {
				b.outputs[j].SetResolved(spec.Type, rate)
			}
		}
		return nil
	}
	return &TypeMismatchError{Block: b.name, Inputs: inputs}
}

// Files implements Block with no auxiliary files by default.
func (b *BaseBlock) Files() []*os.File { return b.files }

// AddFile registers an auxiliary open file the process driver must
// preserve across fork/exec.
func (b *BaseBlock) AddFile(f *os.File) { b.files = append(b.files, f) }
