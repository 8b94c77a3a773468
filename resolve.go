package flowgraph

// differentiateAndResolveRates walks order (already validated as a
// topological order by the graph analyzer) and, for every block:
//  1. gathers each input's resolved data type from the upstream output
//     port conns names, and records each input's resolved rate on the
//     port itself via SetResolvedRate (not yet through a bound pipe - none
//     exists until materializePipes runs after this pass),
//  2. calls Differentiate to pick a signature and propagate output types
//     and rate to the block's own output ports - a block whose Rate()
//     reads InputPort.Rate() (the usual way a derived rate is computed)
//     now sees the value SetResolvedRate just recorded, instead of the
//     zero value an unbound pipe would report,
//  3. asserts every input's resolved rate, read the same way, agrees.
//
// This is spec step 4-5 of prepareToRun. Running it before any Pipe is
// constructed means a block's Rate() implementation can safely assume its
// inputs are differentiated (topological order guarantees that) without
// needing a transport object to exist yet.
func differentiateAndResolveRates(order []Block, conns map[*InputPort]*OutputPort) error {
	for _, b := range order {
		pb, ok := b.(portedBlock)
		if !ok {
			continue
		}
		ins := pb.InputPorts()
		inputTypes := make([]DataType, len(ins))
		for i, in := range ins {
			if out, bound := conns[in]; bound {
				inputTypes[i] = out.DataType()
				in.SetResolvedRate(out.Rate())
			}
		}
		if err := b.Differentiate(inputTypes); err != nil {
			return err
		}
		if err := checkRates(pb, conns); err != nil {
			return err
		}
	}
	return nil
}

// checkRates asserts every input port of b resolves to the same upstream
// rate. A block with fewer than two inputs trivially satisfies this.
func checkRates(b portedBlock, conns map[*InputPort]*OutputPort) error {
	ins := b.InputPorts()
	if len(ins) < 2 {
		return nil
	}
	rates := make([]int, len(ins))
	for i, in := range ins {
		if out, bound := conns[in]; bound {
			rates[i] = out.Rate()
		}
	}
	first := rates[0]
	for _, r := range rates {
		if r != first {
			return &RateMismatchError{Block: b.Name(), Rates: rates}
		}
	}
	return nil
}

// validateConnected asserts every input port discovered by crawl has an
// entry in the connection set, per spec step 2 of prepareToRun. Unlike
// checkRates this runs before topological sort, since an unconnected input
// is a construction error independent of ordering.
func validateConnected(blocks []Block, conns map[*InputPort]*OutputPort) error {
	for _, b := range blocks {
		pb, ok := b.(portedBlock)
		if !ok {
			continue
		}
		for _, in := range pb.InputPorts() {
			if _, bound := conns[in]; !bound {
				return &TopologyError{
					Reason: "input port never connected",
					Blocks: []string{blockName(b) + "." + in.Name()},
				}
			}
		}
	}
	return nil
}
