// Package statemachine generalizes HildaM-scaled-mcp's StateMachineActor
// When()/WhenUnhandled()/Stay()/Goto() builder into the full hierarchical
// state machine of spec.md §3/§4.3: a genuine state stack for push/pop,
// entry/exit actions, defer/ignore/wildcard sets, and RaiseEvent. A Machine
// is itself an actor.Actor, so it is spawned the same way as any other
// actor.
package statemachine

import (
	"fmt"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/scheduler"
)

// StateID names one state in a Machine.
type StateID string

type transitionKind int

const (
	transitionNone transitionKind = iota
	transitionGoto
	transitionPush
	transitionPop
	transitionRaise
	transitionHalt
)

// Transition is what an EventHandler returns: at most one of goto, push,
// pop, raise, or halt. Because a handler produces exactly one Transition
// value, spec.md's "at most one transition per handler invocation"
// invariant holds structurally rather than needing a runtime check.
type Transition struct {
	kind   transitionKind
	target StateID
	raised event.Event
}

// Stay keeps the machine in its current state, performing no transition.
func Stay() Transition { return Transition{kind: transitionNone} }

// Goto exits the current top-of-stack state and enters target in its
// place; stack depth is unchanged.
func Goto(target StateID) Transition { return Transition{kind: transitionGoto, target: target} }

// Push enters target without exiting the current state, which remains on
// the stack beneath it: an event the pushed state does not handle falls
// through to the state below.
func Push(target StateID) Transition { return Transition{kind: transitionPush, target: target} }

// Pop exits the current top-of-stack state and returns control to whatever
// is beneath it, which is not re-entered (it was never exited).
func Pop() Transition { return Transition{kind: transitionPop} }

// Raise re-dispatches ev against the same state stack within the current
// turn, without a mailbox round-trip.
func Raise(ev event.Event) Transition { return Transition{kind: transitionRaise, raised: ev} }

// Halt requests the owning actor halt once the current handler returns.
func Halt() Transition { return Transition{kind: transitionHalt} }

// EventHandler processes one event while its declaring state is reachable
// on the stack.
type EventHandler func(ctx *actor.Context) Transition

type tagHandler struct {
	tag     event.TypeTag
	handler EventHandler
}

// StateDef declares one state: its entry/exit actions and event bindings.
// Build one with State(name) and its builder methods.
type StateDef struct {
	name     StateID
	onEntry  func(ctx *actor.Context)
	onExit   func(ctx *actor.Context)
	handlers []tagHandler
	deferred []event.TypeTag
	ignored  []event.TypeTag
	wildcard EventHandler
}

// State starts a StateDef builder for the named state.
func State(name StateID) *StateDef {
	return &StateDef{name: name}
}

// OnEntry sets the action run when this state becomes reachable via Goto or
// Push.
func (d *StateDef) OnEntry(fn func(ctx *actor.Context)) *StateDef {
	d.onEntry = fn
	return d
}

// OnExit sets the action run when this state stops being reachable via
// Goto or Pop.
func (d *StateDef) OnExit(fn func(ctx *actor.Context)) *StateDef {
	d.onExit = fn
	return d
}

// On binds handler to events whose tag dynamically upcasts to tag.
func (d *StateDef) On(tag event.TypeTag, handler EventHandler) *StateDef {
	d.handlers = append(d.handlers, tagHandler{tag: tag, handler: handler})
	return d
}

// Defer declares that events matching any of tags should be left in the
// mailbox (deferred) rather than processed while this state is the active
// (top-of-stack) state. A state lower on the stack's Defer set has no
// effect while a pushed state sits above it.
func (d *StateDef) Defer(tags ...event.TypeTag) *StateDef {
	d.deferred = append(d.deferred, tags...)
	return d
}

// Ignore declares that events matching any of tags should be dropped
// silently while this state is the active (top-of-stack) state.
func (d *StateDef) Ignore(tags ...event.TypeTag) *StateDef {
	d.ignored = append(d.ignored, tags...)
	return d
}

// Wildcard binds a handler for any event not otherwise bound, deferred, or
// ignored by this state.
func (d *StateDef) Wildcard(handler EventHandler) *StateDef {
	d.wildcard = handler
	return d
}

func matchesAny(tags []event.TypeTag, tag event.TypeTag) bool {
	for _, t := range tags {
		if tag.DynUpcastsTo(t) {
			return true
		}
	}
	return false
}

func (d *StateDef) find(tag event.TypeTag) (EventHandler, bool) {
	for _, h := range d.handlers {
		if tag.DynUpcastsTo(h.tag) {
			return h.handler, true
		}
	}
	return nil, false
}

// Machine is a running hierarchical state machine: an actor.Actor whose
// Receive dispatches to whichever reachable stack state binds the event.
type Machine struct {
	states map[StateID]*StateDef
	start  StateID
	stack  []StateID

	onDeferred  func(ctx *actor.Context, ev event.Event)
	onIgnored   func(ctx *actor.Context, ev event.Event)
	onUnhandled func(ctx *actor.Context, ev event.Event)
	onException func(ctx *actor.Context, ev event.Event, err any)
}

// New builds a Machine starting in the named state, from the given state
// definitions.
func New(start StateID, defs ...*StateDef) *Machine {
	m := &Machine{states: make(map[StateID]*StateDef, len(defs)), start: start}
	for _, d := range defs {
		m.states[d.name] = d
	}
	return m
}

// OnEventDeferred installs a callback invoked whenever an event is
// deferred.
func (m *Machine) OnEventDeferred(fn func(ctx *actor.Context, ev event.Event)) *Machine {
	m.onDeferred = fn
	return m
}

// OnEventIgnored installs a callback invoked whenever an event is ignored.
func (m *Machine) OnEventIgnored(fn func(ctx *actor.Context, ev event.Event)) *Machine {
	m.onIgnored = fn
	return m
}

// OnUnhandledEvent installs a callback invoked when no reachable state
// binds the event. If unset, an unhandled event is reported as a bug
// (bugs.UnhandledEvent).
func (m *Machine) OnUnhandledEvent(fn func(ctx *actor.Context, ev event.Event)) *Machine {
	m.onUnhandled = fn
	return m
}

// OnException installs a callback invoked when a handler panics with a
// value other than the runtime's own cancellation signal. If unset, the
// panic propagates (and is reported as an assertion failure by the
// scheduler's own recover in RegisterOperation).
func (m *Machine) OnException(fn func(ctx *actor.Context, ev event.Event, err any)) *Machine {
	m.onException = fn
	return m
}

// Current returns the top of the state stack.
func (m *Machine) Current() StateID {
	if len(m.stack) == 0 {
		return ""
	}
	return m.stack[len(m.stack)-1]
}

// Stack returns a snapshot of the active state stack, bottom to top.
func (m *Machine) Stack() []StateID {
	return append([]StateID(nil), m.stack...)
}

func (m *Machine) def(id StateID) *StateDef {
	d, ok := m.states[id]
	if !ok {
		panic(fmt.Sprintf("statemachine: undeclared state %q", id))
	}
	return d
}

// PreStart enters the start state, running its entry action.
func (m *Machine) PreStart(ctx *actor.Context) error {
	m.stack = []StateID{m.start}
	if fn := m.def(m.start).onEntry; fn != nil {
		fn(ctx)
	}
	return nil
}

// PostStop runs the current top state's exit action.
func (m *Machine) PostStop(ctx *actor.Context) error {
	if len(m.stack) == 0 {
		return nil
	}
	if fn := m.def(m.Current()).onExit; fn != nil {
		fn(ctx)
	}
	return nil
}

// Receive dispatches the context's current message against the active
// state stack, top-down.
func (m *Machine) Receive(ctx *actor.Context) {
	m.dispatch(ctx, ctx.Message())
}

// dispatch implements spec.md §4.3's per-event loop: ignore and defer are
// checked only against the active (top-of-stack) state, then a specific
// action binding is looked up top-down so a Push'd state's unhandled
// events fall through to the state beneath it (a Goto'd state has no
// layer beneath to fall through to, since the prior top was replaced), and
// only once no level of the stack binds the event at all does a wildcard
// get a turn — a wildcard never preempts a specific binding declared
// lower on the stack.
func (m *Machine) dispatch(ctx *actor.Context, ev event.Event) {
	if ev == nil {
		return
	}
	tag := ev.Tag()

	top := m.def(m.Current())
	if matchesAny(top.ignored, tag) {
		if m.onIgnored != nil {
			m.onIgnored(ctx, ev)
		}
		return
	}
	if matchesAny(top.deferred, tag) {
		ctx.Defer()
		if m.onDeferred != nil {
			m.onDeferred(ctx, ev)
		}
		return
	}

	var wildcard EventHandler
	for i := len(m.stack) - 1; i >= 0; i-- {
		d := m.def(m.stack[i])
		if handler, ok := d.find(tag); ok {
			m.invoke(ctx, ev, handler)
			return
		}
		if wildcard == nil {
			wildcard = d.wildcard
		}
	}
	if wildcard != nil {
		m.invoke(ctx, ev, wildcard)
		return
	}

	ctx.Unhandled()
	if m.onUnhandled != nil {
		m.onUnhandled(ctx, ev)
		return
	}
	ctx.Scheduler().NotifyAssertionFailure(bugs.UnhandledEvent, ctx.Operation(),
		"state %s: no binding for event %s", m.Current(), tag)
}

func (m *Machine) invoke(ctx *actor.Context, ev event.Event, handler EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			// Once the iteration has concluded, a panic is the scheduler's
			// cancellation signal and must keep unwinding.
			if m.onException != nil && ctx.Scheduler().Outcome() == scheduler.Running {
				m.onException(ctx, ev, r)
				return
			}
			panic(r)
		}
	}()
	m.apply(ctx, handler(ctx))
}

func (m *Machine) apply(ctx *actor.Context, t Transition) {
	switch t.kind {
	case transitionNone:
		return
	case transitionGoto:
		m.runExit(ctx, m.Current())
		m.stack[len(m.stack)-1] = t.target
		m.runEntry(ctx, t.target)
		m.reclaimFor(ctx, t.target)
	case transitionPush:
		m.stack = append(m.stack, t.target)
		m.runEntry(ctx, t.target)
		m.reclaimFor(ctx, t.target)
	case transitionPop:
		if len(m.stack) == 0 {
			return
		}
		m.runExit(ctx, m.Current())
		m.stack = m.stack[:len(m.stack)-1]
		if len(m.stack) > 0 {
			m.reclaimFor(ctx, m.Current())
		}
	case transitionRaise:
		m.dispatch(ctx.WithMessage(t.raised), t.raised)
	case transitionHalt:
		// The top state's exit action runs once, from PostStop.
		ctx.Halt()
	}
}

func (m *Machine) runEntry(ctx *actor.Context, id StateID) {
	if fn := m.def(id).onEntry; fn != nil {
		fn(ctx)
	}
}

func (m *Machine) runExit(ctx *actor.Context, id StateID) {
	if fn := m.def(id).onExit; fn != nil {
		fn(ctx)
	}
}

// reclaimFor restores any deferred event that the new active state no
// longer defers, per spec.md §3 invariant (ii): "a deferred event E is
// re-admitted the first time A enters a state whose defer/ignore sets do
// not both exclude it." Only the active (top-of-stack) state's Defer set
// is consulted, matching dispatch's own per-top-state rule.
func (m *Machine) reclaimFor(ctx *actor.Context, active StateID) {
	stillDeferred := m.def(active).deferred
	ctx.ReclaimDeferred(func(env event.Envelope) bool {
		return !matchesAny(stillDeferred, env.Event.Tag())
	})
}

var _ actor.Actor = (*Machine)(nil)
