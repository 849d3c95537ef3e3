package main

import (
	"sort"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/examples/accountrace"
	"github.com/microsoft/coyote-sub017/runtime/examples/boundedbuffer"
	"github.com/microsoft/coyote-sub017/runtime/examples/liveness"
	"github.com/microsoft/coyote-sub017/runtime/examples/pingpong"
	"github.com/microsoft/coyote-sub017/runtime/examples/raftsafety"
	"github.com/microsoft/coyote-sub017/runtime/examples/timerliveness"
	"github.com/microsoft/coyote-sub017/runtime/examples/turnstile"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

// registry maps a scenario name to a test program. accountrace,
// boundedbuffer, raftsafety, liveness, and timerliveness are each wired
// with their deliberately buggy topology, so `coyotetest run <name>` is a
// demonstration of the kind of bug that strategy is good at finding;
// pingpong and turnstile are wired correctly, demonstrating a clean
// exploration; turnstile is the one built on runtime/statemachine rather
// than a plain actor.Actor switch.
var registry = map[string]testengine.TestFunc{
	"pingpong": func(t *testengine.T) {
		starter := pingpong.NewStarter()
		responder := pingpong.NewResponder()
		responderID := t.CreateActor("responder", func() actor.Actor { return responder })
		starterID := t.CreateActor("starter", func() actor.Actor { return starter })
		t.Send(responderID, pingpong.NewWire(starterID))
		t.Send(starterID, pingpong.NewWire(responderID))
	},
	"accountrace": func(t *testengine.T) {
		acct := &accountrace.Account{Balance: 10}
		aID := t.CreateActor("worker-a", func() actor.Actor { return accountrace.NewWorker(t, acct, 6) })
		bID := t.CreateActor("worker-b", func() actor.Actor { return accountrace.NewWorker(t, acct, 6) })
		t.Send(aID, accountrace.NewWithdraw(6))
		t.Send(bID, accountrace.NewWithdraw(6))
	},
	"raftsafety": func(t *testengine.T) {
		t.RegisterMonitor(raftsafety.Def())
		pool := raftsafety.NewElectionPool(t, 1, 3)
		pool.Start(t)
	},
	"boundedbuffer": func(t *testengine.T) {
		consumer := boundedbuffer.NewConsumer(2) // grantEvery=2 starves the producer: a deadlock demo.
		consumerID := t.CreateActor("consumer", func() actor.Actor { return consumer })
		t.CreateActor("producer", func() actor.Actor { return boundedbuffer.NewProducer(consumerID, 4) })
	},
	"liveness": func(t *testengine.T) {
		t.RegisterMonitor(liveness.Def())
		t.CreateActor("looper", func() actor.Actor { return liveness.NewLooper(t, 0) })
	},
	"timerliveness": func(t *testengine.T) {
		t.RegisterMonitor(timerliveness.Def())
		t.CreateActor("watcher", func() actor.Actor { return timerliveness.NewWatcher(t, false, 0) })
	},
	"turnstile": func(t *testengine.T) {
		gate := turnstile.New()
		id := t.CreateActor("gate", func() actor.Actor { return gate })
		t.Send(id, turnstile.NewPushBar())
		t.Send(id, turnstile.NewCoinInserted())
		t.Send(id, turnstile.NewAlarmReset())
		t.Send(id, turnstile.NewPushBar())
		t.Send(id, turnstile.NewShutdown())
	},
}

func lookup(name string) (testengine.TestFunc, bool) {
	fn, ok := registry[name]
	return fn, ok
}

func names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
