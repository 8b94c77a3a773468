package procdrv

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sdrflow/flowgraph/core"
	"github.com/sdrflow/flowgraph/flowlog"
	"github.com/sdrflow/flowgraph/internal/wire"
)

const (
	envBlock = "FLOWGRAPH_CHILD_BLOCK"
	envFDs   = "FLOWGRAPH_CHILD_FDS"
)

// portedBlock mirrors the root package's interface of the same name
// structurally - any Block built on flowgraph.BaseBlock satisfies it,
// and procdrv cannot import the root package to name it directly.
type portedBlock interface {
	core.Block
	InputPorts() []*core.InputPort
	OutputPorts() []*core.OutputPort
	InputPort(name string) *core.InputPort
	OutputPort(name string) *core.OutputPort
}

// ChildRequested reports whether this process was spawned by a
// ProcessDriver parent to run exactly one block, rather than being the
// top-level controller process.
func ChildRequested() bool { return os.Getenv(envBlock) != "" }

// RunChild looks up the block named by FLOWGRAPH_CHILD_BLOCK in the
// process-wide registry (populated by the same deterministic graph
// construction code the parent ran), rebinds its ports to the file
// descriptors FLOWGRAPH_CHILD_FDS names, and runs it to completion. It
// never returns: the process exits 0 on a clean Run, nonzero otherwise.
func RunChild(ctx context.Context) {
	name := os.Getenv(envBlock)
	b, ok := core.LookupBlock(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "flowgraph: child for unregistered block %q\n", name)
		os.Exit(1)
	}
	pb, ok := b.(portedBlock)
	if !ok {
		fmt.Fprintf(os.Stderr, "flowgraph: block %q exposes no ports\n", name)
		os.Exit(1)
	}

	// The child ran the same Compile pipeline the parent did, so every
	// output port here already carries a locally-materialized pipe no one
	// will ever drain. The first inherited fd for a given output port must
	// discard that pipe rather than fan out alongside it - otherwise every
	// vector is written twice and the undrained pipe's kernel buffer fills
	// until Write blocks forever.
	resetOutputs := make(map[string]bool)

	for _, spec := range strings.Split(os.Getenv(envFDs), ",") {
		if spec == "" {
			continue
		}
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) != 3 {
			continue
		}
		kind, portName, idxStr := parts[0], parts[1], parts[2]
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		f := os.NewFile(uintptr(3+idx), portName)
		switch kind {
		case "in":
			if in := pb.InputPort(portName); in != nil {
				in.Bind(wire.WrapOSPipe(in.DataType(), in.Rate(), f, nil))
			}
		case "out":
			if out := pb.OutputPort(portName); out != nil {
				if !resetOutputs[portName] {
					out.ResetPipes()
					resetOutputs[portName] = true
				}
				out.AddPipe(wire.WrapOSPipe(out.DataType(), out.Rate(), nil, f))
			}
		}
	}

	flowlog.Debugf("child %s starting", name)
	if err := b.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flowgraph: block %q failed: %v\n", name, err)
		os.Exit(1)
	}
	os.Exit(0)
}
