package flowgraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sdrflow/flowgraph/core"
)

// Sentinel kinds per the error taxonomy: malformed connection, topology,
// type-mismatch, rate-mismatch, transport failure, OS failure, and block
// runtime failure. Every concrete error below wraps one of these so
// callers can errors.Is/As against the kind without caring which
// construction step produced it.
var (
	// ErrMalformedConnection covers unknown port names, double-connects,
	// wrong-polarity aliases, and nested aliases already bound.
	ErrMalformedConnection = errors.New("flowgraph: malformed connection")
	// ErrTopology covers unreachable inputs and cycles detected during
	// topological sort.
	ErrTopology = errors.New("flowgraph: topology error")
	// ErrTypeMismatch means no declared signature matched upstream
	// output types.
	ErrTypeMismatch = errors.New("flowgraph: type mismatch")
	// ErrRateMismatch means two inputs of the same block disagree on
	// sample rate.
	ErrRateMismatch = errors.New("flowgraph: rate mismatch")
	// ErrTransport means a pipe write or read returned an unexpected
	// error (not EOF).
	ErrTransport = core.ErrTransport
	// ErrOS means fork/signal/wait returned a nonzero or unexpected
	// result during a lifecycle operation.
	ErrOS = core.ErrOS
	// ErrBlockRuntime means a block's Run failed uncaught in a process
	// driver child.
	ErrBlockRuntime = core.ErrBlockRuntime
)

// MalformedConnectionError names the endpoints of a rejected Connect call.
type MalformedConnectionError struct {
	Reason string
}

func (e *MalformedConnectionError) Error() string {
	return fmt.Sprintf("flowgraph: malformed connection: %s", e.Reason)
}

func (e *MalformedConnectionError) Is(target error) bool { return target == ErrMalformedConnection }

// TopologyError names the block(s) involved in a topology failure.
type TopologyError struct {
	Reason string
	Blocks []string
}

func (e *TopologyError) Error() string {
	if len(e.Blocks) == 0 {
		return fmt.Sprintf("flowgraph: topology error: %s", e.Reason)
	}
	return fmt.Sprintf("flowgraph: topology error: %s (%s)", e.Reason, strings.Join(e.Blocks, ", "))
}

func (e *TopologyError) Is(target error) bool { return target == ErrTopology }

// TypeMismatchError names the block and the upstream types that failed to
// match any declared signature.
type TypeMismatchError struct {
	Block  string
	Inputs []DataType
}

func (e *TypeMismatchError) Error() string {
	names := make([]string, len(e.Inputs))
	for i, t := range e.Inputs {
		if t == nil {
			names[i] = "<nil>"
			continue
		}
		names[i] = t.String()
	}
	return fmt.Sprintf("flowgraph: type mismatch at block %q: no signature accepts (%s)", e.Block, strings.Join(names, ", "))
}

func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// RateMismatchError names the block whose inputs disagree on rate.
type RateMismatchError struct {
	Block string
	Rates []int
}

func (e *RateMismatchError) Error() string {
	return fmt.Sprintf("flowgraph: rate mismatch at block %q: %v", e.Block, e.Rates)
}

func (e *RateMismatchError) Is(target error) bool { return target == ErrRateMismatch }

// TransportError wraps a pipe read/write failure that is not EOF. The
// concrete type lives in package core so internal/wire and
// internal/procdrv, which cannot import this package, can construct it
// directly.
type TransportError = core.TransportError

// OSError wraps a failed fork/exec/signal/wait lifecycle operation.
type OSError = core.OSFailureError

// BlockRuntimeError names the block whose Run failed in a process driver
// child.
type BlockRuntimeError = core.BlockRuntimeError

// MultiError aggregates failures from several concurrently failing
// components - the process driver reports every child that failed to wait
// cleanly, not just the first one. The concrete type lives in package core
// so internal/procdrv, which cannot import this package, can construct it
// directly.
type MultiError = core.MultiError
