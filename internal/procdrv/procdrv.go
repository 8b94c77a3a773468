// Package procdrv implements the process-per-block driver: one OS child
// per block, communicating through the pipe file descriptors the parent
// preserved across a self re-exec, plus a thread-based fallback with the
// same Start/Wait/Stop/Status lifecycle for platforms without a usable
// fork/exec, grounded on phono's
// fitting.Async goroutine+channel fitting.
package procdrv

import (
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/sdrflow/flowgraph/core"
	"github.com/sdrflow/flowgraph/flowlog"
	"github.com/sdrflow/flowgraph/flowmetrics"
)

// BlockProc is everything the process driver needs to spawn one block's
// child and later name it in diagnostics: the block itself, whether it is
// a source (zero input ports - the only blocks Stop signals directly),
// and the descriptor set plus matching spec strings RunChild decodes on
// the other side of re-exec.
type BlockProc struct {
	Block    core.Block
	IsSource bool
	Files    []*os.File
	FDSpecs  []string
}

// ProcessDriver is the parent-side lifecycle: start spawns every child,
// wait blocks until shutdown, stop terminates sources and lets EOF cascade
// collapse the rest, status polls liveness.
type ProcessDriver struct {
	procs []BlockProc

	mu       sync.Mutex
	cmds     map[string]*exec.Cmd
	running  bool
	stopped  bool
	waitErr  error
	doneCh   chan struct{}
	sigCh    chan os.Signal
}

// New builds a process driver over procs, in execution order.
func New(procs []BlockProc) *ProcessDriver {
	return &ProcessDriver{procs: procs, cmds: make(map[string]*exec.Cmd)}
}

// Start spawns one child per block via self re-exec, then closes the
// parent's copies of every descriptor it handed to a child, so it is not
// an accidental writer/reader of any pipe.
func (d *ProcessDriver) Start() error {
	self, err := os.Executable()
	if err != nil {
		return &core.OSFailureError{Op: "os.Executable", Err: err}
	}

	checkFDLimit(d.procs)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sigCh = make(chan os.Signal, 1)
	signal.Notify(d.sigCh, syscall.SIGTERM, syscall.SIGINT)

	for _, p := range d.procs {
		cmd := exec.Command(self)
		cmd.ExtraFiles = p.Files
		cmd.Env = append(os.Environ(),
			envBlock+"="+p.Block.Name(),
			envFDs+"="+strings.Join(p.FDSpecs, ","),
		)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			signal.Stop(d.sigCh)
			return &core.OSFailureError{Op: "start " + p.Block.Name(), Err: err}
		}
		d.cmds[p.Block.Name()] = cmd
		flowmetrics.ChildrenLive.Inc()
	}

	for _, p := range d.procs {
		for _, f := range p.Files {
			f.Close()
		}
	}

	d.doneCh = make(chan struct{})
	d.running = true
	go d.run()
	return nil
}

// run masks (via signal.Notify, registered in Start before any child is
// spawned) the termination signal and demultiplexes it against the first
// child-exited event: whichever comes first triggers terminateSources, and
// every remaining
// child is reaped before Wait returns. Every child that fails to wait
// cleanly contributes to a core.MultiError instead of only the first one
// errgroup.Group.Wait would otherwise surface - several blocks can fail at
// once under SIGTERM-driven shutdown, and Wait's caller should see all of
// them.
func (d *ProcessDriver) run() {
	defer close(d.doneCh)

	childDone := make(chan struct{}, 1)
	var (
		mu   sync.Mutex
		errs core.MultiError
	)
	var g errgroup.Group
	for name, cmd := range d.cmds {
		name, cmd := name, cmd
		g.Go(func() error {
			err := cmd.Wait()
			flowmetrics.ChildrenLive.Dec()
			select {
			case childDone <- struct{}{}:
			default:
			}
			if err == nil {
				return nil
			}
			var childErr error
			if exitErr, ok := err.(*exec.ExitError); ok {
				childErr = &core.BlockRuntimeError{Block: name, ExitCode: exitErr.ExitCode(), Err: err}
			} else {
				childErr = &core.OSFailureError{Op: "wait " + name, Err: err}
			}
			mu.Lock()
			errs = append(errs, childErr)
			mu.Unlock()
			return nil
		})
	}

	select {
	case <-d.sigCh:
		d.terminateSources()
	case <-childDone:
		d.terminateSources()
	}

	g.Wait()
	d.mu.Lock()
	d.waitErr = errs.Ret()
	d.running = false
	d.mu.Unlock()
}

// checkFDLimit warns if the process's open-file soft limit looks too tight
// for the number of descriptors this graph is about to hand out across
// every child's ExtraFiles, rather than letting a spawn fail deep inside
// exec.Cmd.Start with an opaque "too many open files".
func checkFDLimit(procs []BlockProc) {
	var needed uint64
	for _, p := range procs {
		needed += uint64(len(p.Files))
	}
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return
	}
	if rlim.Cur != unix.RLIM_INFINITY && needed > rlim.Cur {
		flowlog.Warnf("process driver needs at least %d file descriptors, RLIMIT_NOFILE soft limit is %d", needed, rlim.Cur)
	}
}

func (d *ProcessDriver) terminateSources() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.procs {
		if !p.IsSource {
			continue
		}
		cmd := d.cmds[p.Block.Name()]
		if cmd == nil || cmd.Process == nil {
			continue
		}
		cmd.Process.Signal(syscall.SIGTERM)
	}
}

// Wait blocks until termination or the first child-exited event has
// collapsed the graph, reaping every child, then returns a core.MultiError
// aggregating every child that failed to wait cleanly, or nil if none did.
func (d *ProcessDriver) Wait() error {
	d.mu.Lock()
	doneCh := d.doneCh
	d.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	<-doneCh
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waitErr
}

// Stop sends a polite terminate signal to every source block and relies on
// EOF cascading to collapse the rest. A no-op on a not-running graph, and
// safe to call more than once.
func (d *ProcessDriver) Stop() error {
	d.mu.Lock()
	if d.stopped || !d.running {
		d.stopped = true
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()
	d.terminateSources()
	return nil
}

// Status reports whether any child is still live.
func (d *ProcessDriver) Status() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
