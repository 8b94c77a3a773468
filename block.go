package flowgraph

import "github.com/sdrflow/flowgraph/core"

// Outcome is the result of one cooperative tick of a block.
type Outcome = core.Outcome

// The three outcomes a block's RunOnce can report.
const (
	Produced = core.Produced
	Idle     = core.Idle
	EOF      = core.EOF
)

// DataType identifies a sample type flowing through a pipe. Concrete
// numeric types (complex, real, byte, bit, ...) are supplied by callers;
// the engine only needs size and identity.
type DataType = core.DataType

// PortSpec names one port slot within a TypeSignature.
type PortSpec = core.PortSpec

// TypeSignature is one declared (inputs, outputs) assignment a block may
// offer to the resolver.
type TypeSignature = core.TypeSignature

// Block is the only capability the engine requires of a processing unit.
// Every signal-processing block - filters, mixers, a PLL, demodulators -
// implements this interface; the engine never looks past it.
type Block = core.Block

// SourceBlock is a Block with no input ports. The process driver sends
// terminate signals to source blocks on Stop; buildChildSpecs asks a block
// that implements this interface directly, falling back to the structural
// check (zero input ports) for blocks that don't.
type SourceBlock = core.SourceBlock

// RegisterBlock records b under its own name so a process-driver child,
// which reconstructs the graph from scratch in a fresh OS process, can look
// it up by name instead of by shared memory reference. Block
// implementations built from BaseBlock need no extra step beyond calling
// this once after construction; Compile does not do it automatically,
// since composites and test doubles may never run under the process
// driver at all.
func RegisterBlock(b Block) { core.RegisterBlock(b) }
