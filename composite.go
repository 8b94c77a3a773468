package flowgraph

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sdrflow/flowgraph/flowlog"
)

type (
	// aliasInput is a composite's own input port: it fans every vector
	// written through it out to every concrete input port it targets.
	aliasInput struct {
		name    string
		targets []*InputPort
	}

	// aliasOutput is a composite's own output port: it delegates to
	// exactly one concrete output port.
	aliasOutput struct {
		name     string
		delegate *OutputPort
	}
)

// Composite holds a connection set and, when used as a hierarchical block,
// aliases its own named ports to children's ports. A top-level Composite
// never aliases its own ports; it exists only to hold the connection set
// that Compile crawls.
type Composite struct {
	id   xid.ID
	name string

	ownInputs      map[string]*aliasInput
	ownOutputs     map[string]*aliasOutput
	ownInputOrder  []string
	ownOutputOrder []string
	ownSigs        []TypeSignature

	// conns is the connection set: each concrete input port maps to the
	// concrete output port that feeds it. Keyed by pointer identity, so
	// a port can appear as a key at most once, which is exactly the
	// no-double-connect invariant.
	conns map[*InputPort]*OutputPort

	// blockSet and blockOrder hold every concrete block discovered so far,
	// blockOrder in first-seen (insertion) order, for reproducible
	// topological tie-breaking.
	blockSet   map[Block]bool
	blockOrder []Block

	// nested is every other *Composite referenced while aliasing this
	// composite's own ports. Compile crawls these transitively so that
	// blocks connected only inside a nested composite - never mentioned
	// to this composite directly - are still discovered.
	nested map[*Composite]bool
}

// NewComposite creates an empty composite with no connections.
func NewComposite(name string) *Composite {
	return &Composite{
		id:         xid.New(),
		name:       name,
		ownInputs:  make(map[string]*aliasInput),
		ownOutputs: make(map[string]*aliasOutput),
		conns:      make(map[*InputPort]*OutputPort),
		blockSet:   make(map[Block]bool),
		nested:     make(map[*Composite]bool),
	}
}

// Name implements the minimal identity every endpoint needs.
func (c *Composite) Name() string { return c.name }

// AddTypeSignature declares one (inputs, outputs) assignment for this
// composite's own aliasable ports. The first call fixes the name and
// order of the composite's own ports; later calls may only repeat the
// same names (they exist to let a composite nested under a resolver offer
// more than one type assignment for documentation purposes - the engine
// itself never differentiates a composite, since only concrete blocks are
// ever scheduled).
func (c *Composite) AddTypeSignature(inputs, outputs []PortSpec) error {
	if len(c.ownSigs) == 0 {
		for _, spec := range inputs {
			c.ownInputOrder = append(c.ownInputOrder, spec.Name)
			c.ownInputs[spec.Name] = &aliasInput{name: spec.Name}
		}
		for _, spec := range outputs {
			c.ownOutputOrder = append(c.ownOutputOrder, spec.Name)
			c.ownOutputs[spec.Name] = &aliasOutput{name: spec.Name}
		}
	}
	c.ownSigs = append(c.ownSigs, TypeSignature{Inputs: inputs, Outputs: outputs})
	return nil
}

func (c *Composite) registerBlock(b Block) {
	if !c.blockSet[b] {
		c.blockSet[b] = true
		c.blockOrder = append(c.blockOrder, b)
	}
}

// Connect supports the chained convenience form, connecting each adjacent
// pair of blocks using each block's first output and first input.
func (c *Composite) Connect(blocks ...Block) error {
	if len(blocks) < 2 {
		return nil
	}
	for i := 0; i+1 < len(blocks); i++ {
		src := blocks[i]
		dst := blocks[i+1]
		srcPort, err := firstOutputName(src)
		if err != nil {
			return err
		}
		dstPort, err := firstInputName(dst)
		if err != nil {
			return err
		}
		if err := c.ConnectNamed(src, srcPort, dst, dstPort); err != nil {
			return err
		}
	}
	return nil
}

func firstOutputName(e interface{}) (string, error) {
	if pb, ok := e.(portedBlock); ok {
		ports := pb.OutputPorts()
		if len(ports) == 0 {
			return "", &MalformedConnectionError{Reason: fmt.Sprintf("block %q has no output ports", nameOf(e))}
		}
		return ports[0].Name(), nil
	}
	return "", &MalformedConnectionError{Reason: fmt.Sprintf("block %q does not expose ports", nameOf(e))}
}

func firstInputName(e interface{}) (string, error) {
	if pb, ok := e.(portedBlock); ok {
		ports := pb.InputPorts()
		if len(ports) == 0 {
			return "", &MalformedConnectionError{Reason: fmt.Sprintf("block %q has no input ports", nameOf(e))}
		}
		return ports[0].Name(), nil
	}
	return "", &MalformedConnectionError{Reason: fmt.Sprintf("block %q does not expose ports", nameOf(e))}
}

// portedBlock is satisfied by any Block embedding BaseBlock: it exposes
// its concrete ports by name for composite lookup.
type portedBlock interface {
	Block
	OutputPorts() []*OutputPort
	InputPorts() []*InputPort
	OutputPort(name string) *OutputPort
	InputPort(name string) *InputPort
}

func nameOf(e interface{}) string {
	if b, ok := e.(Block); ok {
		return b.Name()
	}
	if c, ok := e.(*Composite); ok {
		return c.name
	}
	return "<unknown>"
}

// ConnectNamed supports the explicit named form: connect(src, src_port,
// dst, dst_port). Either endpoint may be c itself, a nested *Composite, or
// an ordinary Block.
func (c *Composite) ConnectNamed(src interface{}, srcPort string, dst interface{}, dstPort string) error {
	srcIsSelf := isComposite(src, c)
	dstIsSelf := isComposite(dst, c)

	switch {
	case !srcIsSelf && !dstIsSelf:
		return c.connectEdge(src, srcPort, dst, dstPort)
	case srcIsSelf && !dstIsSelf:
		return c.aliasOwnInput(srcPort, dst, dstPort)
	case !srcIsSelf && dstIsSelf:
		return c.aliasOwnOutput(dstPort, src, srcPort)
	default:
		return &MalformedConnectionError{Reason: "cannot connect a composite's own port to itself"}
	}
}

func isComposite(e interface{}, c *Composite) bool {
	sc, ok := e.(*Composite)
	return ok && sc == c
}

// connectEdge is the real-edge case: neither endpoint is c itself.
func (c *Composite) connectEdge(src interface{}, srcPort string, dst interface{}, dstPort string) error {
	out, err := c.resolveOutput(src, srcPort)
	if err != nil {
		return err
	}
	ins, err := c.resolveInputs(dst, dstPort)
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		return &MalformedConnectionError{Reason: fmt.Sprintf("destination %q.%q resolves to no concrete input", nameOf(dst), dstPort)}
	}
	for _, in := range ins {
		if _, already := c.conns[in]; already {
			return &MalformedConnectionError{Reason: fmt.Sprintf("input %q.%q is already connected", blockName(in.Owner), in.Name())}
		}
	}
	// record the connection only; concrete pipes are materialized in
	// Compile once the whole graph - including blocks discovered
	// transitively through nested composites - is known.
	for _, in := range ins {
		c.conns[in] = out
		flowlog.Debugf("connect %s.%s -> %s.%s", blockName(out.Owner), out.Name(), blockName(in.Owner), in.Name())
	}
	return nil
}

// aliasOwnInput handles `own input <-> dst`, where dst is either a plain
// block's input, or a nested composite's own input (absorbed).
func (c *Composite) aliasOwnInput(ownPort string, dst interface{}, dstPort string) error {
	alias, err := c.ownInput(ownPort)
	if err != nil {
		return err
	}
	if nested, ok := dst.(*Composite); ok {
		c.nested[nested] = true
		nestedAlias, err := nested.ownInput(dstPort)
		if err != nil {
			return err
		}
		alias.targets = append(alias.targets, nestedAlias.targets...)
		return nil
	}
	ins, err := c.resolveInputs(dst, dstPort)
	if err != nil {
		return err
	}
	alias.targets = append(alias.targets, ins...)
	return nil
}

// aliasOwnOutput handles `own output <-> src`, where src is either a plain
// block's output, or a nested composite's own output (taken over).
func (c *Composite) aliasOwnOutput(ownPort string, src interface{}, srcPort string) error {
	alias, err := c.ownOutput(ownPort)
	if err != nil {
		return err
	}
	if alias.delegate != nil {
		return &MalformedConnectionError{Reason: fmt.Sprintf("composite %q output %q is already aliased", c.name, ownPort)}
	}
	if nested, ok := src.(*Composite); ok {
		c.nested[nested] = true
		nestedAlias, err := nested.ownOutput(srcPort)
		if err != nil {
			return err
		}
		if nestedAlias.delegate == nil {
			return &MalformedConnectionError{Reason: fmt.Sprintf("composite %q output %q has no delegate yet", nested.name, srcPort)}
		}
		alias.delegate = nestedAlias.delegate
		return nil
	}
	out, err := c.resolveOutput(src, srcPort)
	if err != nil {
		return err
	}
	alias.delegate = out
	return nil
}

func (c *Composite) ownInput(name string) (*aliasInput, error) {
	a, ok := c.ownInputs[name]
	if !ok {
		return nil, &MalformedConnectionError{Reason: fmt.Sprintf("composite %q has no own input port %q", c.name, name)}
	}
	return a, nil
}

func (c *Composite) ownOutput(name string) (*aliasOutput, error) {
	a, ok := c.ownOutputs[name]
	if !ok {
		return nil, &MalformedConnectionError{Reason: fmt.Sprintf("composite %q has no own output port %q", c.name, name)}
	}
	return a, nil
}

// resolveOutput looks up a named output port on e, searching outputs then
// (n/a for outputs) resolving through composite delegation to a concrete
// OutputPort.
func (c *Composite) resolveOutput(e interface{}, name string) (*OutputPort, error) {
	switch v := e.(type) {
	case *Composite:
		c.nested[v] = true
		alias, err := v.ownOutput(name)
		if err != nil {
			return nil, err
		}
		if alias.delegate == nil {
			return nil, &MalformedConnectionError{Reason: fmt.Sprintf("composite %q output %q has no delegate bound yet", v.name, name)}
		}
		return alias.delegate, nil
	case portedBlock:
		out := v.OutputPort(name)
		if out == nil {
			return nil, &MalformedConnectionError{Reason: fmt.Sprintf("block %q has no output port %q", v.Name(), name)}
		}
		c.registerBlock(v)
		return out, nil
	default:
		return nil, &MalformedConnectionError{Reason: fmt.Sprintf("endpoint %q does not expose ports", nameOf(e))}
	}
}

// resolveInputs looks up a named input port on e, resolving through
// composite aliasing (one-to-many fan-out) down to concrete InputPorts.
func (c *Composite) resolveInputs(e interface{}, name string) ([]*InputPort, error) {
	switch v := e.(type) {
	case *Composite:
		c.nested[v] = true
		alias, err := v.ownInput(name)
		if err != nil {
			return nil, err
		}
		return alias.targets, nil
	case portedBlock:
		in := v.InputPort(name)
		if in == nil {
			return nil, &MalformedConnectionError{Reason: fmt.Sprintf("block %q has no input port %q", v.Name(), name)}
		}
		c.registerBlock(v)
		return []*InputPort{in}, nil
	default:
		return nil, &MalformedConnectionError{Reason: fmt.Sprintf("endpoint %q does not expose ports", nameOf(e))}
	}
}

// crawl discovers every block reachable from c's connection set, directly
// or transitively through nested composites, extending c's own connection
// set in-place until a fixed point - spec step 1 of prepareToRun. It
// returns the fully merged set of blocks in first-seen order.
func (c *Composite) crawl() []Block {
	visitedComposites := map[*Composite]bool{c: true}
	queue := []*Composite{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for in, out := range cur.conns {
			if cur != c {
				if _, already := c.conns[in]; !already {
					c.conns[in] = out
				}
			}
			c.registerBlock(out.Owner)
			c.registerBlock(in.Owner)
		}
		for _, b := range cur.blockOrder {
			c.registerBlock(b)
		}
		for nested := range cur.nested {
			if !visitedComposites[nested] {
				visitedComposites[nested] = true
				queue = append(queue, nested)
			}
		}
	}
	return c.blockOrder
}
