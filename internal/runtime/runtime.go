// Package runtime implements the cooperative, single-task round-robin
// driver: one goroutine ticks every block in execution order, applying
// skip sets when a block goes idle and cascading shutdown on EOF. It needs
// no OS process or pipe support.
package runtime

import (
	"sync"

	"github.com/sdrflow/flowgraph/core"
	"github.com/sdrflow/flowgraph/flowlog"
	"github.com/sdrflow/flowgraph/flowmetrics"
)

// Cooperative drives a fixed execution order to completion or external
// stop.
type Cooperative struct {
	order    []core.Block
	skipSets map[core.Block]map[core.Block]bool

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
	running bool
	err     error
}

// New builds a cooperative driver over order, with skipSets as computed by
// the graph analyzer (skipSets[b] is the set of blocks transitively
// downstream of b).
func New(order []core.Block, skipSets map[core.Block]map[core.Block]bool) *Cooperative {
	return &Cooperative{order: order, skipSets: skipSets}
}

// Start launches the round-robin loop on its own goroutine. Every block
// in c.order is already initialized by the time Start is called - Compile
// does that once, uniformly, for whichever driver it ends up building.
func (c *Cooperative) Start() error {
	c.mu.Lock()
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.running = true
	c.mu.Unlock()
	go c.loop()
	return nil
}

func (c *Cooperative) loop() {
	defer c.finish()

	for {
		skip := make(map[core.Block]bool)
		eof := false
		for _, b := range c.order {
			if skip[b] {
				continue
			}
			flowmetrics.Ticks.WithLabelValues(b.Name()).Inc()
			outcome, err := b.RunOnce()
			if err != nil {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				eof = true
				break
			}
			switch outcome {
			case core.Produced:
				flowmetrics.Outcomes.WithLabelValues(b.Name(), "produced").Inc()
			case core.Idle:
				flowmetrics.Outcomes.WithLabelValues(b.Name(), "idle").Inc()
				for down := range c.skipSets[b] {
					skip[down] = true
				}
			case core.EOF:
				flowmetrics.Outcomes.WithLabelValues(b.Name(), "eof").Inc()
				eof = true
			}
			if eof {
				break
			}
		}
		if eof {
			return
		}
		select {
		case <-c.stopCh:
			return
		default:
		}
	}
}

func (c *Cooperative) finish() {
	for _, b := range c.order {
		if err := b.Cleanup(); err != nil {
			flowlog.Warnf("cleanup %s: %v", b.Name(), err)
		}
	}
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	close(c.doneCh)
}

// Wait blocks until the loop has exited, by EOF cascade or Stop, and
// returns the first error encountered, if any.
func (c *Cooperative) Wait() error {
	c.mu.Lock()
	doneCh := c.doneCh
	c.mu.Unlock()
	if doneCh == nil {
		return nil
	}
	<-doneCh
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stop requests the loop exit at the next pass boundary. Idempotent: a
// second call, or a call after the loop has already finished, is a no-op.
func (c *Cooperative) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.stopCh == nil {
		c.stopped = true
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	return nil
}

// Status reports whether the loop is still running.
func (c *Cooperative) Status() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
