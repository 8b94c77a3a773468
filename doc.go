/*
Package flowgraph is the core of a software-defined-radio dataflow runtime.

It composes signal-processing blocks into a directed acyclic graph, picks a
concrete type signature for every block from its declared set, propagates
sample rates, and executes the graph with one of two interchangeable
drivers: a single-task cooperative round-robin scheduler, or a
process-per-block scheduler that moves samples through OS pipes.

Concept

A Block exposes typed input and output ports. A Composite wires blocks
together with Connect, possibly aliasing its own ports to a child's ports so
that composites nest. Compile crawls the connection set, orders blocks
topologically, differentiates every block's type signature, checks that
sample rates agree at every multi-input block, and returns a Graph ready to
Run.

Individual block implementations (filters, mixers, demodulators), concrete
source/sink I/O, the numeric sample types themselves, and the command-line
runner are external collaborators; this package only knows that a block
honors the Block interface and that a DataType exposes size and identity.
*/
package flowgraph
