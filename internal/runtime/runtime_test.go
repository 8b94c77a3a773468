package runtime

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sdrflow/flowgraph/core"
)

// stubBlock is the smallest core.Block the driver needs: a scripted
// sequence of outcomes, consumed one per RunOnce call.
type stubBlock struct {
	name     string
	outcomes []core.Outcome
	calls    int
	cleaned  int
}

func (b *stubBlock) Name() string                         { return b.name }
func (b *stubBlock) TypeSignatures() []core.TypeSignature  { return nil }
func (b *stubBlock) Differentiate(inputs []core.DataType) error { return nil }
func (b *stubBlock) Rate() int                             { return 1000 }
func (b *stubBlock) Initialize() error                     { return nil }
func (b *stubBlock) Files() []*os.File                     { return nil }
func (b *stubBlock) Cleanup() error                        { b.cleaned++; return nil }

func (b *stubBlock) RunOnce() (core.Outcome, error) {
	if b.calls >= len(b.outcomes) {
		return core.EOF, nil
	}
	o := b.outcomes[b.calls]
	b.calls++
	return o, nil
}

func (b *stubBlock) Run(ctx context.Context) error {
	for {
		o, err := b.RunOnce()
		if err != nil {
			return err
		}
		if o == core.EOF {
			return nil
		}
	}
}

// TestCooperativeRunsToEOF checks that the first of two independent
// producers to reach EOF (src2, on the second pass) collapses the graph
// cleanly, cleaning up every block exactly once.
func TestCooperativeRunsToEOF(t *testing.T) {
	defer goleak.VerifyNone(t)

	src1 := &stubBlock{name: "src1", outcomes: []core.Outcome{core.Produced, core.Produced, core.EOF}}
	src2 := &stubBlock{name: "src2", outcomes: []core.Outcome{core.Produced, core.EOF}}

	drv := New([]core.Block{src1, src2}, map[core.Block]map[core.Block]bool{
		src1: {}, src2: {},
	})
	require.NoError(t, drv.Start())
	require.NoError(t, drv.Wait())

	assert.Equal(t, 1, src1.cleaned)
	assert.Equal(t, 1, src2.cleaned)
	assert.False(t, drv.Status())
}

// TestCooperativeSkipsDownstreamOnIdle checks that an idle upstream block
// causes its downstream skip set to be elided for that pass.
func TestCooperativeSkipsDownstreamOnIdle(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &stubBlock{name: "src", outcomes: []core.Outcome{core.Idle, core.EOF}}
	down := &stubBlock{name: "down", outcomes: []core.Outcome{core.Produced, core.Produced, core.Produced}}

	skipSets := map[core.Block]map[core.Block]bool{
		src:  {down: true},
		down: {},
	}
	drv := New([]core.Block{src, down}, skipSets)
	require.NoError(t, drv.Start())
	require.NoError(t, drv.Wait())

	// down was skipped on the Idle pass, and on the next pass src reported
	// EOF before the loop reached it, so down was never ticked at all.
	assert.Equal(t, 0, down.calls)
}

// TestCooperativeStopIsIdempotent checks that Stop may be called any
// number of times, including after the loop has already finished, without
// blocking or erroring.
func TestCooperativeStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &stubBlock{name: "src", outcomes: []core.Outcome{core.EOF}}
	drv := New([]core.Block{src}, map[core.Block]map[core.Block]bool{src: {}})
	require.NoError(t, drv.Start())
	require.NoError(t, drv.Wait())

	require.NoError(t, drv.Stop())
	require.NoError(t, drv.Stop())
}

// TestCooperativeStopMidRun exercises Stop racing the round-robin loop: it
// must converge without leaking the loop goroutine regardless of which
// side notices first.
func TestCooperativeStopMidRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := &stubBlock{name: "src", outcomes: make([]core.Outcome, 1000)}
	for i := range src.outcomes {
		src.outcomes[i] = core.Produced
	}
	drv := New([]core.Block{src}, map[core.Block]map[core.Block]bool{src: {}})
	require.NoError(t, drv.Start())
	require.NoError(t, drv.Stop())
	require.NoError(t, drv.Wait())
	assert.False(t, drv.Status())
}
