// Package strategy implements the pluggable exploration policies that pick
// which enabled operation runs next, and resolve controlled random choices.
// Every Strategy must be a deterministic function of the prior choices it
// has made plus its seed: the scheduler never consults wall-clock time or
// any other ambient source when asking a Strategy for a decision.
package strategy

import (
	"math/rand/v2"

	"github.com/microsoft/coyote-sub017/runtime/operation"
)

// Metadata gives a Strategy enough context about the step it is deciding to
// make an informed (if still pseudo-random) choice, without exposing the
// scheduler's internals.
type Metadata struct {
	// Step is the 0-based index of this scheduling decision within the
	// current iteration.
	Step int
	// LastChosen is the operation picked on the previous step, or nil on
	// the first step of an iteration.
	LastChosen *operation.Operation
}

// Strategy is the pluggable policy consulted at every scheduling point.
type Strategy interface {
	// Name identifies the strategy for reports and CLI selection.
	Name() string
	// NextOperation picks one of the enabled operations. enabled is never
	// empty; the scheduler only calls this when len(enabled) > 0.
	NextOperation(enabled []*operation.Operation, md Metadata) *operation.Operation
	// NextBoolean resolves a controlled random boolean choice. bound, when
	// > 0, biases true with probability 1/bound (bound==0 means uniform).
	NextBoolean(bound int) bool
	// NextInteger resolves a controlled random integer choice in [0, bound).
	NextInteger(bound int) int
	// PrepareForIteration resets any per-iteration state (e.g. DFS cursor)
	// ahead of running iteration iterIndex.
	PrepareForIteration(iterIndex int)
	// ShouldContinue lets bounded strategies (DFS) signal that the
	// exploration tree is exhausted and further iterations are pointless.
	ShouldContinue() bool
	// Fair reports whether schedules produced by this strategy are fair:
	// liveness bugs are only reported under a fair strategy.
	Fair() bool
}

// source wraps a seeded math/rand/v2 PCG generator for the Random,
// Probabilistic and Priority strategies.
type source struct {
	rng *rand.Rand
}

func newSource(seed uint64) *source {
	return &source{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *source) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.IntN(n)
}
