package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/operation"
	"github.com/microsoft/coyote-sub017/runtime/strategy"
	"github.com/microsoft/coyote-sub017/runtime/trace"
)

func enabledOps(n int) []*operation.Operation {
	ops := make([]*operation.Operation, n)
	for i := range ops {
		ops[i] = operation.New(operation.ActorOperation, "", "op")
	}
	return ops
}

func TestRandomIsDeterministicForAGivenSeed(t *testing.T) {
	ops := enabledOps(5)

	a := strategy.NewRandom(7)
	b := strategy.NewRandom(7)

	for step := 0; step < 20; step++ {
		require.Equal(t, a.NextOperation(ops, strategy.Metadata{Step: step}), b.NextOperation(ops, strategy.Metadata{Step: step}))
	}
}

func TestRandomPrepareForIterationReseeds(t *testing.T) {
	ops := enabledOps(5)
	r := strategy.NewRandom(1)

	r.PrepareForIteration(0)
	first := r.NextOperation(ops, strategy.Metadata{})

	r.PrepareForIteration(0)
	again := r.NextOperation(ops, strategy.Metadata{})

	require.Equal(t, first, again, "re-preparing the same iteration index reproduces the same choice")
}

func TestRandomIsFairAndUnbounded(t *testing.T) {
	r := strategy.NewRandom(1)
	require.True(t, r.Fair())
	require.True(t, r.ShouldContinue())
	require.Equal(t, "random", r.Name())
}

func TestDFSEnumeratesEveryCombinationThenExhausts(t *testing.T) {
	d := strategy.NewDFS(2)
	ops := enabledOps(2)

	seen := make(map[string]bool)
	for iter := 0; d.ShouldContinue(); iter++ {
		d.PrepareForIteration(iter)
		a := d.NextOperation(ops, strategy.Metadata{Step: 0})
		b := d.NextOperation(ops, strategy.Metadata{Step: 1})
		seen[a.ID.String()+","+b.ID.String()] = true
		require.Less(t, iter, 10, "DFS over a 2x2 tree must exhaust well within 10 iterations")
	}

	require.Len(t, seen, 4, "DFS should visit all 2x2 combinations before exhausting")
}

func TestDFSIsUnfairAndZeroBiased(t *testing.T) {
	d := strategy.NewDFS(10)
	require.False(t, d.Fair())
	require.False(t, d.NextBoolean(0))
	require.Equal(t, 0, d.NextInteger(10))
}

func TestProbabilisticBiasOneAlwaysRepeatsLastChosen(t *testing.T) {
	ops := enabledOps(4)
	p := strategy.NewProbabilistic(3, 1)

	last := ops[2]
	for i := 0; i < 20; i++ {
		chosen := p.NextOperation(ops, strategy.Metadata{LastChosen: last})
		require.Equal(t, last, chosen)
	}
}

func TestProbabilisticBiasZeroNeverForcesLastChosen(t *testing.T) {
	ops := enabledOps(1)
	p := strategy.NewProbabilistic(3, 0)
	chosen := p.NextOperation(ops, strategy.Metadata{LastChosen: ops[0]})
	require.Equal(t, ops[0], chosen, "with only one enabled operation the uniform fallback still picks it")
	require.True(t, p.Fair())
}

func TestPriorityReshufflesAndStaysFairWhenPeriodic(t *testing.T) {
	ops := enabledOps(6)
	p := strategy.NewPriority(9, 2)
	require.True(t, p.Fair())

	chosenAtLeastTwice := map[string]int{}
	for step := 0; step < 50; step++ {
		chosen := p.NextOperation(ops, strategy.Metadata{Step: step})
		chosenAtLeastTwice[chosen.ID.String()]++
	}
	require.Greater(t, len(chosenAtLeastTwice), 1, "periodic reshuffling should let more than one operation win the top rank")
}

func TestPriorityWithoutReshuffleIsUnfairAndStable(t *testing.T) {
	ops := enabledOps(3)
	p := strategy.NewPriority(9, 0)
	require.False(t, p.Fair())

	first := p.NextOperation(ops, strategy.Metadata{Step: 0})
	for step := 1; step < 10; step++ {
		require.Equal(t, first, p.NextOperation(ops, strategy.Metadata{Step: step}))
	}
}

func TestReplayReproducesRecordedChoices(t *testing.T) {
	ops := enabledOps(3)

	f := trace.File{
		Header: trace.Header{Version: trace.Version, Strategy: "random", Seed: 1},
		Records: []trace.Record{
			{Step: 0, OpID: ops[1].ID.String()},
			{Step: 1, OpID: ops[0].ID.String()},
		},
	}

	r := strategy.NewReplay(f, true)
	require.True(t, r.Fair())
	require.True(t, r.ShouldContinue())

	require.Equal(t, ops[1], r.NextOperation(ops, strategy.Metadata{Step: 0}))
	require.Equal(t, ops[0], r.NextOperation(ops, strategy.Metadata{Step: 1}))

	bug, diverged := r.Diverged()
	require.False(t, diverged)
	require.Nil(t, bug)
}

func TestReplayDetectsDivergenceFromLiveEnabledSet(t *testing.T) {
	ops := enabledOps(2)

	f := trace.File{
		Header:  trace.Header{Version: trace.Version, Strategy: "random", Seed: 1},
		Records: []trace.Record{{Step: 0, OpID: "op-999999"}},
	}

	r := strategy.NewReplay(f, false)
	r.NextOperation(ops, strategy.Metadata{Step: 0})

	bug, diverged := r.Diverged()
	require.True(t, diverged)
	require.NotNil(t, bug)
	require.False(t, r.ShouldContinue())
}
