// Package graph crawls a block connection set into a dependency graph,
// topologically orders blocks, and computes skip sets for the cooperative
// driver. The topological sort is Kahn's algorithm, grounded on the
// tsort.go style used by flow-oriented process daemons in the wild: build
// inbound-edge counts, repeatedly peel off roots, and detect a cycle when
// no root remains but unordered nodes do.
package graph

// Node is anything the graph can order; callers pass their own block
// handles (Go's type system makes a Kahn implementation over interface{}
// identity straightforward, unlike the string-keyed edge lists some
// daemons use).
type Node interface{}

// Edge is a single dependency: From must be ordered before To.
type Edge struct {
	From Node
	To   Node
}

// Graph is the dependency graph keyed by node.
type Graph struct {
	nodes   []Node
	nodeSet map[Node]bool
	// deps[n] lists the nodes whose outputs feed n's inputs.
	deps map[Node][]Node
	// rdeps[n] lists the nodes that consume n's outputs (reverse deps).
	rdeps map[Node][]Node
}

// New builds a dependency graph from nodes (in insertion order, which
// fixes topological tie-breaking) and edges.
func New(nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		nodeSet: make(map[Node]bool, len(nodes)),
		deps:    make(map[Node][]Node),
		rdeps:   make(map[Node][]Node),
	}
	for _, n := range nodes {
		if !g.nodeSet[n] {
			g.nodeSet[n] = true
			g.nodes = append(g.nodes, n)
			g.deps[n] = nil
		}
	}
	for _, e := range edges {
		g.ensure(e.From)
		g.ensure(e.To)
		g.deps[e.To] = append(g.deps[e.To], e.From)
		g.rdeps[e.From] = append(g.rdeps[e.From], e.To)
	}
	return g
}

func (g *Graph) ensure(n Node) {
	if !g.nodeSet[n] {
		g.nodeSet[n] = true
		g.nodes = append(g.nodes, n)
	}
}

// Deps returns the nodes that n directly depends on.
func (g *Graph) Deps(n Node) []Node { return g.deps[n] }

// TopoSort orders every node after all of its dependencies, breaking ties
// by insertion order. It reports a CycleError if the graph is not a DAG.
func (g *Graph) TopoSort() ([]Node, error) {
	inbound := make(map[Node]int, len(g.nodes))
	for _, n := range g.nodes {
		inbound[n] = len(g.deps[n])
	}

	order := make([]Node, 0, len(g.nodes))
	placed := make(map[Node]bool, len(g.nodes))

	for len(order) < len(g.nodes) {
		progressed := false
		for _, n := range g.nodes {
			if placed[n] || inbound[n] > 0 {
				continue
			}
			order = append(order, n)
			placed[n] = true
			progressed = true
			for _, consumer := range g.rdeps[n] {
				inbound[consumer]--
			}
		}
		if !progressed {
			return nil, &CycleError{Remaining: remaining(g.nodes, placed)}
		}
	}
	return order, nil
}

func remaining(nodes []Node, placed map[Node]bool) []Node {
	var r []Node
	for _, n := range nodes {
		if !placed[n] {
			r = append(r, n)
		}
	}
	return r
}

// SkipSets computes, for every node, the transitive closure of nodes
// downstream of it (a DFS over the reverse-dependency graph), used by the
// cooperative driver to elide a tick for everything guaranteed to see no
// data because an upstream block was idle.
func (g *Graph) SkipSets() map[Node]map[Node]bool {
	sets := make(map[Node]map[Node]bool, len(g.nodes))
	for _, n := range g.nodes {
		visited := make(map[Node]bool)
		var dfs func(Node)
		dfs = func(cur Node) {
			for _, next := range g.rdeps[cur] {
				if !visited[next] {
					visited[next] = true
					dfs(next)
				}
			}
		}
		dfs(n)
		sets[n] = visited
	}
	return sets
}

// CycleError reports that the graph could not be fully ordered because it
// contains a cycle; Remaining holds whatever nodes could not be placed.
type CycleError struct {
	Remaining []Node
}

func (e *CycleError) Error() string {
	return "graph: cycle detected; unplaceable nodes remain"
}
