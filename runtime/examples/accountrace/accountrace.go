// Package accountrace is the second seed scenario: a ledger with a genuine
// check-then-act race between two workers sharing one account, the kind of
// bug that only a handful of schedules out of many expose.
package accountrace

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/rand"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

var withdrawTag = event.NewTypeTag("accountrace.Withdraw")

// Withdraw asks a worker to debit amount from the shared account.
type Withdraw struct {
	event.Base
	Amount int
}

// NewWithdraw builds a Withdraw for the given amount.
func NewWithdraw(amount int) Withdraw { return Withdraw{Base: event.NewBase(withdrawTag), Amount: amount} }

// Account is the ledger shared, unsynchronized, between every worker — by
// design: the scheduler serializes all actor turns, so the only way this
// program can corrupt Balance is for a worker to yield (a controlled
// scheduling point) between reading and writing it, letting another
// worker's withdrawal interleave.
type Account struct {
	Balance int
}

// Worker debits amount from acct on Withdraw, reading the balance, yielding
// once at a controlled scheduling point to stand in for the "check, then
// later act" shape of a real concurrent withdrawal, and only then writing
// the result back.
type Worker struct {
	acct   *Account
	t      *testengine.T
	amount int
}

// NewWorker builds a Worker that withdraws amount from acct when asked.
func NewWorker(t *testengine.T, acct *Account, amount int) *Worker {
	return &Worker{acct: acct, t: t, amount: amount}
}

func (w *Worker) PreStart(ctx *actor.Context) error { return nil }

func (w *Worker) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case Withdraw:
		sufficient := w.acct.Balance >= msg.Amount
		rand.Boolean(ctx.Scheduler(), ctx.Operation())
		if sufficient {
			w.acct.Balance -= msg.Amount
		}
		w.t.Assert(w.acct.Balance >= 0, "account went negative: %d", w.acct.Balance)
		ctx.Halt()
	default:
		ctx.Unhandled()
	}
}

func (w *Worker) PostStop(ctx *actor.Context) error { return nil }

var _ actor.Actor = (*Worker)(nil)
