package raftsafety_test

import (
	"testing"

	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/examples/raftsafety"
	"github.com/microsoft/coyote-sub017/runtime/runtimetest"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

// TestSplitVoteCanElectTwoLeaders: each node's coin flip is independent, so
// across enough randomly scheduled iterations two nodes eventually both win
// the same term and the monitor raises the safety violation. DFS is not
// used here: this strategy's controlled booleans always resolve to the
// same branch (see runtime/strategy's DFS.NextBoolean), so it can only ever
// explore the "every candidate loses" corner of this scenario.
func TestSplitVoteCanElectTwoLeaders(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Strategy = config.StrategyRandom
	cfg.Seed = 7
	cfg.Iterations = 32
	cfg.FailFast = true

	runtimetest.RequireBug(t, cfg, func(tt *testengine.T) {
		tt.RegisterMonitor(raftsafety.Def())
		pool := raftsafety.NewElectionPool(tt, 1, 3)
		pool.Start(tt)
	})
}

// TestSingleCandidateNeverViolates is the control case: with one candidate
// there is no other leader to collide with.
func TestSingleCandidateNeverViolates(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Iterations = 10

	runtimetest.RequireNoBug(t, cfg, func(tt *testengine.T) {
		tt.RegisterMonitor(raftsafety.Def())
		pool := raftsafety.NewElectionPool(tt, 1, 1)
		pool.Start(tt)
	})
}
