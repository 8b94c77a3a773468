package flowgraph

import "github.com/sdrflow/flowgraph/flowconfig"

// Config is the engine's top-level configuration: which driver to run
// under, whether to emit debug diagnostics, and where metrics live. The
// concrete type lives in flowconfig so it can be loaded from YAML without
// this package depending on a parser.
type Config = flowconfig.Config

// DefaultConfig returns process-per-block, no debug output, no metrics
// address.
func DefaultConfig() Config { return flowconfig.Default() }
