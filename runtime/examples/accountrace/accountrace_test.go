package accountrace_test

import (
	"testing"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/examples/accountrace"
	"github.com/microsoft/coyote-sub017/runtime/runtimetest"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

// TestConcurrentWithdrawalsCanOverdraw exercises the DFS strategy against a
// small, bounded state space: exploring it exhaustively is guaranteed to
// hit the interleaving where both workers read the balance before either
// writes it back, driving the account negative.
func TestConcurrentWithdrawalsCanOverdraw(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Strategy = config.StrategyDFS
	cfg.MaxDepth = 64
	cfg.Iterations = 20
	cfg.FailFast = true

	runtimetest.RequireBug(t, cfg, func(tt *testengine.T) {
		acct := &accountrace.Account{Balance: 10}

		aID := tt.CreateActor("worker-a", func() actor.Actor { return accountrace.NewWorker(tt, acct, 6) })
		bID := tt.CreateActor("worker-b", func() actor.Actor { return accountrace.NewWorker(tt, acct, 6) })

		tt.Send(aID, accountrace.NewWithdraw(6))
		tt.Send(bID, accountrace.NewWithdraw(6))
	})
}
