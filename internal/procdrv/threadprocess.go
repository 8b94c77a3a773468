package procdrv

import (
	"context"
	"sync"

	"github.com/sdrflow/flowgraph/core"
	"github.com/sdrflow/flowgraph/flowlog"
)

// ThreadProcess is the portable process-driver fallback, selected by Compile
// when cfg.Multiprocess is false and cfg.Threaded is
// true: each block runs on its own goroutine instead of its own OS
// process, connected through the same wire.Local fittings materializePipes
// builds for the cooperative driver - safe here because Local guards its
// single slot with a mutex. Grounded directly on phono's fitting.Async
// goroutine+channel fitting - one task per component, driven
// independently instead of round-robin.
type ThreadProcess struct {
	blocks []core.Block

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	errs    core.MultiError
	doneCh  chan struct{}
}

// NewThreadProcess builds a thread-based process driver over blocks, in
// execution order (order only fixes the order Cleanup is called in once
// every goroutine has returned; the goroutines themselves run concurrently
// and independently).
func NewThreadProcess(blocks []core.Block) *ThreadProcess {
	return &ThreadProcess{blocks: blocks}
}

// Start launches one goroutine per block, each calling block.Run once and
// waiting for it to return (EOF reached, context cancelled, or an error).
func (t *ThreadProcess) Start() error {
	ctx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.cancel = cancel
	t.running = true
	t.doneCh = make(chan struct{})
	t.mu.Unlock()

	var wg sync.WaitGroup
	for _, b := range t.blocks {
		wg.Add(1)
		go func(b core.Block) {
			defer wg.Done()
			if err := b.Run(ctx); err != nil {
				t.mu.Lock()
				t.errs = append(t.errs, err)
				t.mu.Unlock()
				flowlog.Warnf("block %s exited with error: %v", b.Name(), err)
			}
		}(b)
	}

	go func() {
		wg.Wait()
		for _, b := range t.blocks {
			if err := b.Cleanup(); err != nil {
				flowlog.Warnf("cleanup %s: %v", b.Name(), err)
			}
		}
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		close(t.doneCh)
	}()
	return nil
}

// Wait blocks until every block's goroutine has returned.
func (t *ThreadProcess) Wait() error {
	t.mu.Lock()
	doneCh := t.doneCh
	t.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	<-doneCh
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errs.Ret()
}

// Stop cancels every block's context; block implementations are expected
// to observe ctx.Done() the same way a real process observes SIGTERM.
func (t *ThreadProcess) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// Status reports whether any block goroutine is still running.
func (t *ThreadProcess) Status() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
