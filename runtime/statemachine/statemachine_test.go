package statemachine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/runtimetest"
	"github.com/microsoft/coyote-sub017/runtime/statemachine"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

var (
	aTag    = event.NewTypeTag("smtest.A")
	bTag    = event.NewTypeTag("smtest.B")
	cTag    = event.NewTypeTag("smtest.C")
	dTag    = event.NewTypeTag("smtest.D")
	haltTag = event.NewTypeTag("smtest.Halt")
)

type evA struct{ event.Base }

func newA() evA { return evA{Base: event.NewBase(aTag)} }

type evB struct{ event.Base }

func newB() evB { return evB{Base: event.NewBase(bTag)} }

type evC struct{ event.Base }

func newC() evC { return evC{Base: event.NewBase(cTag)} }

type evD struct{ event.Base }

func newD() evD { return evD{Base: event.NewBase(dTag)} }

// evHalt asks the fixture's active state to return statemachine.Halt(); it
// is not the reserved event.Halt, which would bypass Receive entirely.
type evHalt struct{ event.Base }

func newHalt() evHalt { return evHalt{Base: event.NewBase(haltTag)} }

const (
	stateBottom statemachine.StateID = "bottom"
	stateTop    statemachine.StateID = "top"
)

// probe is a minimal Machine wrapper recording which handler fired, for
// assertions finer-grained than a full scenario needs. Every test ends by
// sending evHalt so the actor halts instead of blocking on an empty
// mailbox forever, which the scheduler would otherwise (correctly) report
// as a deadlock.
type probe struct {
	*statemachine.Machine

	entries, exits []statemachine.StateID
	ignoredN       int
	deferredN      int
	bTop           int // how many times top's specific B handler fired
	wildcardTop    int // how many times top's wildcard fired
	cBottom        int // bottom's C handler, reached by fallthrough from top
}

func newProbe() *probe {
	p := &probe{}

	bottom := statemachine.State(stateBottom).
		OnEntry(func(ctx *actor.Context) { p.entries = append(p.entries, stateBottom) }).
		OnExit(func(ctx *actor.Context) { p.exits = append(p.exits, stateBottom) }).
		On(aTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Push(stateTop)
		}).
		On(cTag, func(ctx *actor.Context) statemachine.Transition {
			p.cBottom++
			return statemachine.Stay()
		}).
		On(haltTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Halt()
		}).
		Defer(dTag)

	top := statemachine.State(stateTop).
		OnEntry(func(ctx *actor.Context) { p.entries = append(p.entries, stateTop) }).
		OnExit(func(ctx *actor.Context) { p.exits = append(p.exits, stateTop) }).
		On(bTag, func(ctx *actor.Context) statemachine.Transition {
			p.bTop++
			if p.bTop == 1 {
				return statemachine.Raise(newC())
			}
			return statemachine.Pop()
		}).
		On(haltTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Halt()
		}).
		Ignore(aTag).
		Wildcard(func(ctx *actor.Context) statemachine.Transition {
			p.wildcardTop++
			return statemachine.Stay()
		})

	p.Machine = statemachine.New(stateBottom, bottom, top).
		OnEventIgnored(func(ctx *actor.Context, ev event.Event) { p.ignoredN++ }).
		OnEventDeferred(func(ctx *actor.Context, ev event.Event) { p.deferredN++ })
	return p
}

func run(t *testing.T, seed uint64, fn func(id actor.ActorId, tt *testengine.T)) *probe {
	t.Helper()
	p := newProbe()
	rep := runtimetest.RunOnce(t, seed, func(tt *testengine.T) {
		id := tt.CreateActor("probe", func() actor.Actor { return p })
		fn(id, tt)
		tt.Send(id, newHalt())
	})
	require.Nil(t, rep.Bug)
	return p
}

func TestPushEntersWithoutExitingBeneath(t *testing.T) {
	p := run(t, 1, func(id actor.ActorId, tt *testengine.T) {
		tt.Send(id, newA())
	})
	require.Equal(t, []statemachine.StateID{stateBottom, stateTop}, p.entries)
	require.Equal(t, []statemachine.StateID{stateTop}, p.exits,
		"Push must not exit the state beneath it; only the final Halt exits top")
}

func TestRaiseFallsThroughToBottomAndPopExitsTop(t *testing.T) {
	p := run(t, 2, func(id actor.ActorId, tt *testengine.T) {
		tt.Send(id, newA()) // bottom -> push(top)
		tt.Send(id, newD()) // top has no D binding/defer/ignore of its own
		tt.Send(id, newB()) // first B raises C, which falls through to bottom's C binding
		tt.Send(id, newB()) // second B pops back to bottom
	})
	// D matches neither Ignore(aTag) nor any specific top binding, and
	// dispatch checks only the active (top-of-stack) state's Defer set, so
	// D falls to top's Wildcard rather than bottom's Defer(dTag).
	require.Equal(t, 1, p.wildcardTop)
	require.Equal(t, 1, p.cBottom, "the raised C must fall through top to bottom's C binding, in the same turn")
	require.Equal(t, []statemachine.StateID{stateBottom, stateTop}, p.entries)
	require.Equal(t, []statemachine.StateID{stateTop, stateBottom}, p.exits,
		"Pop exits top, then the final Halt exits bottom")
}

func TestIgnoreDropsEventSilently(t *testing.T) {
	p := run(t, 3, func(id actor.ActorId, tt *testengine.T) {
		tt.Send(id, newA()) // bottom -> push(top)
		tt.Send(id, newA()) // top ignores A
	})
	require.Equal(t, 1, p.ignoredN)
	require.Equal(t, statemachine.StateID(stateTop), p.Current())
}

func TestWildcardYieldsToSpecificBindingLowerOnStack(t *testing.T) {
	p := run(t, 4, func(id actor.ActorId, tt *testengine.T) {
		tt.Send(id, newA()) // bottom -> push(top)
		tt.Send(id, newC()) // top has no C binding; bottom does
	})
	require.Equal(t, 1, p.cBottom, "a specific binding on a lower stack level must win over top's wildcard")
	require.Zero(t, p.wildcardTop)
}

const (
	stateDeferring      statemachine.StateID = "deferring"
	stateStillDeferring statemachine.StateID = "still-deferring"
	stateClear          statemachine.StateID = "clear"
)

// deferFixture isolates defer re-admission from the push/pop probe above: D
// stays deferred across one Goto (into a state that also defers it) and is
// only reclaimed on the Goto into a state whose Defer set excludes it.
type deferFixture struct {
	*statemachine.Machine
	dHandled  int
	deferredN int
}

func newDeferFixture() *deferFixture {
	f := &deferFixture{}

	deferring := statemachine.State(stateDeferring).
		On(aTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Goto(stateStillDeferring)
		}).
		Defer(dTag)

	stillDeferring := statemachine.State(stateStillDeferring).
		On(aTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Goto(stateClear)
		}).
		Defer(dTag)

	clear := statemachine.State(stateClear).
		On(dTag, func(ctx *actor.Context) statemachine.Transition {
			f.dHandled++
			return statemachine.Stay()
		}).
		On(haltTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Halt()
		})

	f.Machine = statemachine.New(stateDeferring, deferring, stillDeferring, clear).
		OnEventDeferred(func(ctx *actor.Context, ev event.Event) { f.deferredN++ })
	return f
}

func TestDeferPersistsThenReadmitsOnceNoLongerDeferred(t *testing.T) {
	f := newDeferFixture()
	rep := runtimetest.RunOnce(t, 5, func(tt *testengine.T) {
		id := tt.CreateActor("defer-fixture", func() actor.Actor { return f })
		tt.Send(id, newD()) // deferring state defers D
		tt.Send(id, newA()) // Goto(stillDeferring), which still defers D: not reclaimed
		tt.Send(id, newA()) // Goto(clear), which does not defer D: reclaimed and handled
		tt.Send(id, newHalt())
	})
	require.Nil(t, rep.Bug)
	require.Equal(t, 1, f.deferredN)
	require.Equal(t, 1, f.dHandled)
	require.Equal(t, stateClear, f.Current())
}
