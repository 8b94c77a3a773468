// Package wire implements the two Pipe transports the engine needs: an
// in-process single-slot pipe for the cooperative driver, and a
// file-descriptor-backed pipe, framed with a length prefix, for the
// process-per-block driver. The split mirrors phono's fitting.Sync/
// fitting.Async pair: one fitting for two components driven
// by the same goroutine, one for two components that must cross a
// concurrency boundary - here, a process boundary instead of a goroutine
// boundary.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sdrflow/flowgraph/core"
)

// Local is a single-slot pipe: Write stores the vector, overwriting any
// unread one; Read returns the stored vector and empties the slot, or an
// empty vector when nothing is stored. A mutex guards the slot so it is safe both for
// the cooperative driver (which only ever touches it from one goroutine)
// and for the thread-based process driver fallback, where the writing
// block and the reading block each run on their own goroutine.
type Local struct {
	dataType core.DataType
	rate     int

	mu      sync.Mutex
	closed  bool
	pending *core.Vector
}

// NewLocal creates a Local pipe resolved to t at rate.
func NewLocal(t core.DataType, rate int) *Local {
	return &Local{dataType: t, rate: rate}
}

func (l *Local) Write(v core.Vector) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &core.TransportClosedError{}
	}
	l.pending = &v
	return nil
}

func (l *Local) Read() (core.Vector, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		if l.closed {
			return core.Vector{}, io.EOF
		}
		return core.Vector{}, nil
	}
	v := *l.pending
	l.pending = nil
	return v, nil
}

func (l *Local) DataType() core.DataType { return l.dataType }
func (l *Local) Rate() int               { return l.rate }
func (l *Local) Filenos() []int          { return nil }
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// OSPipe is a real os.Pipe() pair carrying a length-prefixed frame of
// vector bytes, so it survives fork/exec via file descriptor inheritance -
// the process driver hands ReaderFile to the reading block's child and
// WriterFile to the writing block's child.
type OSPipe struct {
	dataType core.DataType
	rate     int

	mu      sync.Mutex
	reader  *os.File
	writer  *os.File
	header  [8]byte // 4 bytes sample count, 4 bytes payload length
}

// NewOSPipe opens a real OS pipe resolved to t at rate.
func NewOSPipe(t core.DataType, rate int) (*OSPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, &core.OSFailureError{Op: "pipe", Err: err}
	}
	return WrapOSPipe(t, rate, r, w), nil
}

// WrapOSPipe builds an OSPipe around already-open ends. A process-driver
// child uses this to reconstruct the pipe it inherited across re-exec from
// a single *os.File recovered from one of its ExtraFiles - reader or
// writer may be nil, for the half a given process actually owns.
func WrapOSPipe(t core.DataType, rate int, reader, writer *os.File) *OSPipe {
	return &OSPipe{dataType: t, rate: rate, reader: reader, writer: writer}
}

// Write serializes v as (count uint32, payload-length uint32, payload) and
// blocks until the kernel pipe buffer accepts it all.
func (p *OSPipe) Write(v core.Vector) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer == nil {
		return &core.TransportError{Op: "write", Err: fmt.Errorf("no writer end held")}
	}
	binary.BigEndian.PutUint32(p.header[0:4], uint32(v.N))
	binary.BigEndian.PutUint32(p.header[4:8], uint32(len(v.Data)))
	if _, err := p.writer.Write(p.header[:]); err != nil {
		return &core.TransportError{Op: "write header", Err: err}
	}
	if len(v.Data) > 0 {
		if _, err := p.writer.Write(v.Data); err != nil {
			return &core.TransportError{Op: "write payload", Err: err}
		}
	}
	return nil
}

// Read returns the next framed vector, or io.EOF once the writer end has
// closed and no bytes remain.
func (p *OSPipe) Read() (core.Vector, error) {
	if p.reader == nil {
		return core.Vector{}, &core.TransportError{Op: "read", Err: fmt.Errorf("no reader end held")}
	}
	var hdr [8]byte
	if _, err := io.ReadFull(p.reader, hdr[:]); err != nil {
		if err == io.EOF {
			return core.Vector{}, io.EOF
		}
		return core.Vector{}, &core.TransportError{Op: "read header", Err: err}
	}
	n := binary.BigEndian.Uint32(hdr[0:4])
	dataLen := binary.BigEndian.Uint32(hdr[4:8])
	data := make([]byte, dataLen)
	if dataLen > 0 {
		if _, err := io.ReadFull(p.reader, data); err != nil {
			return core.Vector{}, &core.TransportError{Op: "read payload", Err: err}
		}
	}
	return core.Vector{Type: p.dataType, N: int(n), Data: data}, nil
}

func (p *OSPipe) DataType() core.DataType { return p.dataType }
func (p *OSPipe) Rate() int               { return p.rate }

// Filenos returns whichever ends' descriptors this pipe currently holds.
// A pipe rebuilt around only one end (as a process-driver child does)
// reports just that one.
func (p *OSPipe) Filenos() []int {
	var fds []int
	if p.reader != nil {
		fds = append(fds, int(p.reader.Fd()))
	}
	if p.writer != nil {
		fds = append(fds, int(p.writer.Fd()))
	}
	return fds
}

// ReaderFile and WriterFile expose the underlying *os.File for the process
// driver to pass as ExtraFiles to the child that owns each end.
func (p *OSPipe) ReaderFile() *os.File { return p.reader }
func (p *OSPipe) WriterFile() *os.File { return p.writer }

// CloseReader closes only the read end, for a parent that holds both ends
// but must relinquish one side to a spawned child.
func (p *OSPipe) CloseReader() error {
	if p.reader == nil {
		return nil
	}
	return p.reader.Close()
}

// CloseWriter closes only the write end, surfacing EOF to the reader.
func (p *OSPipe) CloseWriter() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// Close closes whichever ends this pipe holds, reader first. If both
// closes fail, only the reader's error is returned.
func (p *OSPipe) Close() error {
	err1 := p.CloseReader()
	err2 := p.CloseWriter()
	if err1 != nil {
		return fmt.Errorf("close reader: %w", err1)
	}
	if err2 != nil {
		return fmt.Errorf("close writer: %w", err2)
	}
	return nil
}
