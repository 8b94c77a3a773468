package flowgraph

import "context"

// fakeType is the smallest DataType a test needs: two named instances
// compare equal only to themselves.
type fakeType struct{ name string }

func (t fakeType) Size() int               { return 4 }
func (t fakeType) Equal(o DataType) bool   { other, ok := o.(fakeType); return ok && other.name == t.name }
func (t fakeType) String() string          { return t.name }

var (
	fakeReal    = fakeType{"real"}
	fakeComplex = fakeType{"complex"}
)

// fakeBlock is a minimal Block used across the test suite: it records
// every RunOnce/Initialize/Cleanup call and lets the test script its
// outcomes and produced values.
type fakeBlock struct {
	BaseBlock

	rate int

	outcomes []Outcome // scripted outcomes, consumed in order
	produced []int32   // values to write on a Produced outcome, one per call
	calls    int

	initialized int
	cleaned     int
}

func newFakeBlock(name string, rate int, sigs []TypeSignature) *fakeBlock {
	b := &fakeBlock{rate: rate}
	b.BaseBlock = NewBaseBlock(b, name, sigs)
	return b
}

func (b *fakeBlock) Rate() int { return b.rate }

func (b *fakeBlock) Initialize() error {
	b.initialized++
	return nil
}

func (b *fakeBlock) Cleanup() error {
	b.cleaned++
	return nil
}

func (b *fakeBlock) RunOnce() (Outcome, error) {
	if b.calls >= len(b.outcomes) {
		return EOF, nil
	}
	outcome := b.outcomes[b.calls]
	var value int32
	if b.calls < len(b.produced) {
		value = b.produced[b.calls]
	}
	b.calls++

	if outcome == Produced {
		for _, out := range b.OutputPorts() {
			v := NewVector(out.DataType(), 1)
			if len(v.Data) >= 4 {
				v.Data[0] = byte(value)
			}
			if err := out.Write(v); err != nil {
				return Idle, err
			}
		}
	}
	return outcome, nil
}

func (b *fakeBlock) Run(ctx context.Context) error {
	for {
		outcome, err := b.RunOnce()
		if err != nil {
			return err
		}
		if outcome == EOF {
			return nil
		}
	}
}

// derivedRateBlock exercises the common pattern where a block's own Rate()
// reads it back off an input port instead of a field set at construction.
type derivedRateBlock struct {
	BaseBlock
}

func newDerivedRateBlock(name string, sigs []TypeSignature) *derivedRateBlock {
	b := &derivedRateBlock{}
	b.BaseBlock = NewBaseBlock(b, name, sigs)
	return b
}

func (b *derivedRateBlock) Rate() int { return b.InputPort("in").Rate() }

func (b *derivedRateBlock) Initialize() error { return nil }
func (b *derivedRateBlock) Cleanup() error     { return nil }

func (b *derivedRateBlock) RunOnce() (Outcome, error) {
	_, err := b.InputPort("in").Read()
	if err != nil {
		return EOF, nil
	}
	return Produced, nil
}

func (b *derivedRateBlock) Run(ctx context.Context) error {
	for {
		outcome, err := b.RunOnce()
		if err != nil {
			return err
		}
		if outcome == EOF {
			return nil
		}
	}
}

// realSig is a convenience signature with the given number of real inputs
// ("in", "in1", ...) and real outputs ("out", "out1", ...).
func realSig(inputs, outputs int) TypeSignature {
	sig := TypeSignature{}
	for i := 0; i < inputs; i++ {
		sig.Inputs = append(sig.Inputs, PortSpec{Name: portName("in", i), Type: fakeReal})
	}
	for i := 0; i < outputs; i++ {
		sig.Outputs = append(sig.Outputs, PortSpec{Name: portName("out", i), Type: fakeReal})
	}
	return sig
}

func portName(base string, i int) string {
	if i == 0 {
		return base
	}
	return base + string(rune('0'+i))
}
