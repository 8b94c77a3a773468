// Command flowgraph-selfexec is a minimal host for the process-per-block
// driver's self re-exec trick: it builds a flow graph once, then calls
// flowgraph.Run, which transparently re-executes this same binary once per
// block when running under the process driver. A real embedder links
// flowgraph into its own binary the same way; this command exists so the
// re-exec path has something runnable to exercise end to end.
package main

import (
	"fmt"
	"os"

	"github.com/sdrflow/flowgraph"
	"github.com/sdrflow/flowgraph/flowconfig"
)

func main() {
	cfg := flowconfig.Default()
	if v := os.Getenv("FLOWGRAPH_DEBUG"); v != "" {
		cfg.Debug = true
	}

	composite, err := buildGraph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowgraph-selfexec: %v\n", err)
		os.Exit(1)
	}

	if err := flowgraph.Run(composite, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "flowgraph-selfexec: %v\n", err)
		os.Exit(1)
	}
}
