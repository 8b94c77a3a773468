package flowgraph

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sdrflow/flowgraph/flowlog"
	"github.com/sdrflow/flowgraph/internal/graph"
	"github.com/sdrflow/flowgraph/internal/procdrv"
	"github.com/sdrflow/flowgraph/internal/runtime"
	"github.com/sdrflow/flowgraph/internal/wire"
)

// driver is the uniform lifecycle every execution mode exposes: the
// cooperative round-robin driver, the process-per-block driver, and its
// thread-based portability fallback.
type driver interface {
	Start() error
	Wait() error
	Stop() error
	Status() bool
}

// Graph is the immutable, ready-to-run result of Compile: a fixed
// execution order, resolved types and rates on every port, materialized
// pipes, and a driver selected by cfg.Multiprocess. Nothing about a Graph
// changes once Compile returns - topology mutation ends at start.
type Graph struct {
	order    []Block
	cfg      Config
	children []procdrv.BlockProc
	drv      driver

	metricsSrv  *http.Server
	metricsOnce sync.Once
}

// Compile crawls the connection set to a fixed point, validates every
// input is connected, computes a topological execution order and skip
// sets, differentiates every block and checks rates in that order, then
// materializes pipes and initializes every block. Construction-time
// errors (malformed/topology/type/rate) are returned here, before any
// block is initialized.
func (c *Composite) Compile(cfg Config) (*Graph, error) {
	flowlog.SetDebug(cfg.Debug)

	blocks := c.crawl()

	if err := validateConnected(blocks, c.conns); err != nil {
		return nil, err
	}

	nodes := make([]graph.Node, len(blocks))
	for i, b := range blocks {
		nodes[i] = b
	}
	edges := make([]graph.Edge, 0, len(c.conns))
	for in, out := range c.conns {
		edges = append(edges, graph.Edge{From: out.Owner, To: in.Owner})
	}
	g := graph.New(nodes, edges)

	orderNodes, err := g.TopoSort()
	if err != nil {
		if cycleErr, ok := err.(*graph.CycleError); ok {
			names := make([]string, len(cycleErr.Remaining))
			for i, n := range cycleErr.Remaining {
				names[i] = blockName(n.(Block))
			}
			return nil, &TopologyError{Reason: "cycle detected", Blocks: names}
		}
		return nil, &TopologyError{Reason: err.Error()}
	}
	order := make([]Block, len(orderNodes))
	for i, n := range orderNodes {
		order[i] = n.(Block)
	}
	dumpExecutionOrder(order)

	if err := differentiateAndResolveRates(order, c.conns); err != nil {
		return nil, err
	}

	if err := materializePipes(c.conns, cfg.Multiprocess); err != nil {
		return nil, err
	}

	for _, b := range order {
		if err := b.Initialize(); err != nil {
			return nil, err
		}
	}

	graphObj := &Graph{order: order, cfg: cfg}

	if cfg.Multiprocess {
		children, err := buildChildSpecs(order, c.conns)
		if err != nil {
			return nil, err
		}
		graphObj.children = children
		graphObj.drv = procdrv.New(children)
	} else if cfg.Threaded {
		// Block is a type alias for core.Block, so order needs no
		// conversion before crossing into internal/procdrv.
		graphObj.drv = procdrv.NewThreadProcess(order)
	} else {
		skipNodes := g.SkipSets()
		skipSets := make(map[Block]map[Block]bool, len(skipNodes))
		for n, set := range skipNodes {
			bs := make(map[Block]bool, len(set))
			for d := range set {
				bs[d.(Block)] = true
			}
			skipSets[n.(Block)] = bs
		}
		// Block is a type alias for core.Block, so order and skipSets need
		// no conversion before crossing into internal/runtime.
		graphObj.drv = runtime.New(order, skipSets)
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		graphObj.metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	return graphObj, nil
}

// materializePipes allocates one pipe per connection-set entry - a real
// os.Pipe() pair under the process driver, an in-process single-slot pipe
// under the cooperative driver - and binds it on both ends, now that every
// port's type and rate are resolved.
func materializePipes(conns map[*InputPort]*OutputPort, multiprocess bool) error {
	for in, out := range conns {
		var p Pipe
		if multiprocess {
			osp, err := wire.NewOSPipe(out.DataType(), out.Rate())
			if err != nil {
				return err
			}
			p = osp
		} else {
			p = wire.NewLocal(out.DataType(), out.Rate())
		}
		out.AddPipe(p)
		in.Bind(p)
	}
	return nil
}

// buildChildSpecs computes, for every block, the descriptor set and
// matching spec strings a process-driver child needs to rebind its ports
// after re-exec.
func buildChildSpecs(order []Block, conns map[*InputPort]*OutputPort) ([]procdrv.BlockProc, error) {
	procs := make([]procdrv.BlockProc, 0, len(order))
	for _, b := range order {
		pb, ok := b.(portedBlock)
		if !ok {
			continue
		}
		var files []*os.File
		var specs []string
		idx := 0
		for _, in := range pb.InputPorts() {
			osp, ok := in.Pipe().(*wire.OSPipe)
			if !ok {
				return nil, fmt.Errorf("flowgraph: input %s.%s has no OS pipe bound", b.Name(), in.Name())
			}
			files = append(files, osp.ReaderFile())
			specs = append(specs, fmt.Sprintf("in:%s:%d", in.Name(), idx))
			idx++
		}
		for _, out := range pb.OutputPorts() {
			for _, pi := range out.Pipes() {
				osp, ok := pi.(*wire.OSPipe)
				if !ok {
					continue
				}
				files = append(files, osp.WriterFile())
				specs = append(specs, fmt.Sprintf("out:%s:%d", out.Name(), idx))
				idx++
			}
		}
		for _, f := range b.Files() {
			files = append(files, f)
			specs = append(specs, fmt.Sprintf("aux::%d", idx))
			idx++
		}
		isSource := len(pb.InputPorts()) == 0
		if sb, ok := b.(SourceBlock); ok {
			isSource = sb.IsSource()
		}
		procs = append(procs, procdrv.BlockProc{
			Block:    b,
			IsSource: isSource,
			Files:    files,
			FDSpecs:  specs,
		})
	}
	return procs, nil
}

// dumpExecutionOrder renders the resolved execution order via go-spew at
// debug level, the natural extension of the debug output toggle to
// topology construction diagnostics.
func dumpExecutionOrder(order []Block) {
	names := make([]string, len(order))
	for i, b := range order {
		names[i] = blockName(b)
	}
	flowlog.Debugf("execution order:\n%s", spew.Sdump(names))
}

// Start launches the selected driver without blocking for completion, and
// the /metrics server, if cfg.MetricsAddr was set.
func (g *Graph) Start() error {
	if g.metricsSrv != nil {
		go func() {
			if err := g.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				flowlog.Warnf("metrics server: %v", err)
			}
		}()
	}
	return g.drv.Start()
}

// Wait blocks until the graph has collapsed (EOF cascade, Stop, or a
// runtime error) and returns the driver's error, if any: the error that
// ended the cooperative loop, or a MultiError naming every failed block
// under the process driver and its thread-based fallback.
func (g *Graph) Wait() error {
	err := g.drv.Wait()
	g.closeMetrics()
	return err
}

// Stop requests a graceful shutdown. Under the process driver every source
// child is sent SIGTERM and EOF cascades through the rest of the graph;
// the cooperative driver exits at the next pass boundary; the thread-based
// fallback cancels the context every block's Run was given.
func (g *Graph) Stop() error {
	err := g.drv.Stop()
	g.closeMetrics()
	return err
}

func (g *Graph) closeMetrics() {
	if g.metricsSrv == nil {
		return
	}
	g.metricsOnce.Do(func() { g.metricsSrv.Close() })
}

// Status reports whether the graph is still running.
func (g *Graph) Status() bool { return g.drv.Status() }

// Run compiles c under cfg, starts the resulting graph, and blocks until
// it finishes - the single call most callers need. In a process-driver
// child (detected via the re-exec environment variable), Run never
// returns: it compiles identically to reconstruct every block's resolved
// type/rate state, then dispatches straight into the one block this
// process exists to run.
func Run(c *Composite, cfg Config) error {
	g, err := c.Compile(cfg)
	if err != nil {
		return err
	}
	if procdrv.ChildRequested() {
		procdrv.RunChild(context.Background())
	}
	if err := g.Start(); err != nil {
		return err
	}
	return g.Wait()
}
