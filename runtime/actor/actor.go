// Package actor implements the controlled actor execution model: mailboxes,
// dispatch, and the System that owns every actor's backing Operation. It
// knows nothing about state machines; runtime/statemachine is one Actor
// implementation built on top of it, the way HildaM-scaled-mcp's
// StateMachineActor is one goakt/v3 actor.Actor implementation among many.
package actor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/mailbox"
	"github.com/microsoft/coyote-sub017/runtime/operation"
	"github.com/microsoft/coyote-sub017/runtime/scheduler"
)

// ActorId identifies one actor instance for the lifetime of an iteration.
type ActorId struct {
	id   string
	name string
}

// String renders "name#id".
func (a ActorId) String() string {
	if a.id == "" {
		return "<nil>"
	}
	return fmt.Sprintf("%s#%s", a.name, a.id)
}

// IsZero reports whether a is the unaddressed zero ActorId.
func (a ActorId) IsZero() bool { return a.id == "" }

// Name returns the actor's human-readable name, as given to CreateActor.
func (a ActorId) Name() string { return a.name }

func newActorID(name string) ActorId {
	return ActorId{id: uuid.NewString(), name: name}
}

// parseActorID reconstructs an ActorId from its String() form, as stored in
// an envelope's Sender field. The id half never contains '#' (it is a
// uuid), so splitting on the last occurrence recovers the name half even if
// a caller gave an actor a name containing '#'.
func parseActorID(s string) ActorId {
	if i := strings.LastIndex(s, "#"); i >= 0 {
		return ActorId{name: s[:i], id: s[i+1:]}
	}
	return ActorId{id: s}
}

// Actor is the behavior a System dispatches events to. PreStart/PostStop
// mirror goakt/v3's actor.Actor lifecycle hooks; Receive is called once per
// dequeued event with a fresh Context.
type Actor interface {
	PreStart(ctx *Context) error
	Receive(ctx *Context)
	PostStop(ctx *Context) error
}

type actorEntry struct {
	id      ActorId
	mailbox *mailbox.Mailbox
	op      *operation.Operation
	impl    Actor
}

// System owns every actor spawned during one controlled iteration, plus the
// Scheduler that arbitrates their turns.
type System struct {
	sched  *scheduler.Scheduler
	logger *rtlog.Logger

	mu     sync.Mutex
	actors map[string]*actorEntry

	root *operation.Operation
}

// NewSystem constructs a System over an already-built Scheduler and begins
// the root operation representing the calling (test-driver) goroutine.
func NewSystem(sched *scheduler.Scheduler, logger *rtlog.Logger) *System {
	if logger == nil {
		logger = rtlog.Default
	}
	s := &System{
		sched:  sched,
		logger: logger,
		actors: make(map[string]*actorEntry),
	}
	s.root = sched.Begin("root")
	return s
}

// Root returns the operation representing the test driver itself, for
// passing to CreateActor/Send/Halt calls made outside any actor's Receive.
func (s *System) Root() *operation.Operation { return s.root }

// Scheduler returns the System's underlying Scheduler.
func (s *System) Scheduler() *scheduler.Scheduler { return s.sched }

// Wait completes the root operation and blocks until the whole iteration
// concludes — by natural termination, deadlock, a reported bug, or the
// step bound — regardless of which operation's goroutine detects it. Call
// this after the test driver has finished issuing its top-level
// sends/creates.
func (s *System) Wait() { s.sched.Wait(s.root) }

// CreateActor spawns a new actor as a scheduling point: the caller (current)
// cedes its turn immediately afterward so the strategy may choose to run
// the new actor before the caller resumes, per spec.md §5.
func (s *System) CreateActor(current *operation.Operation, name string, factory func() Actor) ActorId {
	id := newActorID(name)
	entry := &actorEntry{id: id, mailbox: mailbox.New(), impl: factory()}

	s.mu.Lock()
	s.actors[id.String()] = entry
	s.mu.Unlock()

	entry.op = s.sched.RegisterOperation(operation.ActorOperation, id.String(), name, func() {
		s.runActor(entry)
	})
	s.sched.StartOperation(current)
	return id
}

func (s *System) lookup(id ActorId) (*actorEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.actors[id.String()]
	return e, ok
}

func (s *System) forget(id ActorId) {
	s.mu.Lock()
	delete(s.actors, id.String())
	s.mu.Unlock()
}

// Send delivers ev to target's mailbox, tagged with sender and group, then
// yields: sending is itself a scheduling point, since it may make a paused
// receive-await runnable.
func (s *System) Send(current *operation.Operation, target ActorId, sender ActorId, group event.Group, ev event.Event) {
	if entry, ok := s.lookup(target); ok {
		entry.mailbox.Enqueue(event.Envelope{Event: ev, Sender: sender.String(), Group: group})
	}
	s.sched.ScheduleNext(current)
}

// Halt sends the reserved Halt event to target.
func (s *System) Halt(current *operation.Operation, target ActorId, sender ActorId) {
	s.Send(current, target, sender, event.NoGroup, event.NewHalt())
}

func (s *System) runActor(e *actorEntry) {
	start := &Context{sys: s, op: e.op, self: e.id}
	if err := e.impl.PreStart(start); err != nil {
		s.sched.NotifyAssertionFailure(bugs.AssertionFailed, e.op, "actor %s PreStart: %v", e.id, err)
		return
	}

	for {
		env, status := e.mailbox.Dequeue()
		if status != mailbox.Ok {
			mb := e.mailbox
			dep := operation.Func{
				Desc: fmt.Sprintf("mailbox(%s) non-empty", e.id),
				Fn:   func() bool { _, has := mb.Peek(); return has },
			}
			s.sched.WaitFor(e.op, dep)
			continue
		}
		if env.Event.Tag().Is(event.HaltTag) {
			break
		}

		rctx := &Context{sys: s, op: e.op, self: e.id, env: env, hasEnv: true}
		e.impl.Receive(rctx)
		if rctx.halting {
			break
		}
	}

	stop := &Context{sys: s, op: e.op, self: e.id}
	_ = e.impl.PostStop(stop)
	e.mailbox.Close()
	s.forget(e.id)
}

// Context is handed to an Actor's lifecycle and Receive methods. Outside of
// Receive (i.e. in PreStart/PostStop) Message/Sender/Group return zero
// values.
type Context struct {
	sys    *System
	op     *operation.Operation
	self   ActorId
	env    event.Envelope
	hasEnv bool

	unhandled bool
	halting   bool
}

// Self returns the receiving actor's id.
func (c *Context) Self() ActorId { return c.self }

// Message returns the event currently being processed, or nil outside
// Receive.
func (c *Context) Message() event.Event {
	if !c.hasEnv {
		return nil
	}
	return c.env.Event
}

// Sender returns the id of the actor that sent the current message, the
// zero ActorId if it originated outside the actor system.
func (c *Context) Sender() ActorId {
	if !c.hasEnv || c.env.Sender == "" {
		return ActorId{}
	}
	return parseActorID(c.env.Sender)
}

// Group returns the correlation group the current message carries.
func (c *Context) Group() event.Group {
	if !c.hasEnv {
		return event.NoGroup
	}
	return c.env.Group
}

// Logger returns the runtime's shared logger.
func (c *Context) Logger() *rtlog.Logger { return c.sys.logger }

// Operation exposes the backing Operation, satisfying the structural
// interface runtime/rand uses to make controlled-random calls a scheduling
// point without importing this package.
func (c *Context) Operation() *operation.Operation { return c.op }

// Scheduler exposes the backing Scheduler, for the same reason as
// Operation.
func (c *Context) Scheduler() *scheduler.Scheduler { return c.sys.Scheduler() }

// Send delivers ev to target, inheriting the current message's group so
// causally-related sends stay correlated.
func (c *Context) Send(target ActorId, ev event.Event) {
	c.sys.Send(c.op, target, c.self, c.Group(), ev)
}

// SendWithGroup delivers ev to target under an explicit group, overriding
// inheritance.
func (c *Context) SendWithGroup(target ActorId, group event.Group, ev event.Event) {
	c.sys.Send(c.op, target, c.self, group, ev)
}

// CreateActor spawns a child actor from within a Receive/PreStart call.
func (c *Context) CreateActor(name string, factory func() Actor) ActorId {
	return c.sys.CreateActor(c.op, name, factory)
}

// Halt requests the receiving actor halt after the current Receive call
// returns.
func (c *Context) Halt() { c.halting = true }

// HaltActor sends the reserved Halt event to target, a different actor than
// self.
func (c *Context) HaltActor(target ActorId) {
	c.sys.Halt(c.op, target, c.self)
}

// Unhandled marks the current message as not handled by any state, for
// callers that want to report it (the state-machine layer uses this to
// surface an OnUnhandledEvent callback).
func (c *Context) Unhandled() { c.unhandled = true }

// WasUnhandled reports whether Unhandled was called during this Receive.
func (c *Context) WasUnhandled() bool { return c.unhandled }

// WithMessage returns a shallow copy of c with the current message replaced
// by ev, attributed to self as sender. Used by runtime/statemachine to
// dispatch a RaiseEvent-produced event within the same turn, without a
// mailbox round-trip.
func (c *Context) WithMessage(ev event.Event) *Context {
	cp := *c
	cp.env = event.Envelope{Event: ev, Sender: c.self.String(), Group: c.Group()}
	cp.hasEnv = true
	cp.unhandled = false
	return &cp
}

// Defer moves the event currently being processed into the owning actor's
// deferred set, per spec.md §3 invariant (ii). Only meaningful from within
// Receive.
func (c *Context) Defer() {
	if !c.hasEnv {
		return
	}
	if entry, ok := c.sys.lookup(c.self); ok {
		entry.mailbox.Defer(c.env)
	}
}

// ReclaimDeferred re-admits every deferred event matching pred to the front
// of the mailbox queue. Called by runtime/statemachine after a transition
// that may no longer defer some previously-deferred tags.
func (c *Context) ReclaimDeferred(pred func(event.Envelope) bool) {
	if entry, ok := c.sys.lookup(c.self); ok {
		entry.mailbox.ReclaimDeferred(pred)
	}
}

// ReceiveEventAsync installs a receive-await for the given tags/predicate
// and blocks the calling operation until a match arrives, per spec.md
// §4.8/§5. It must only be called from within an actor's own dispatch
// operation (i.e. from Receive/PreStart), never from outside code.
func (c *Context) ReceiveEventAsync(types []event.TypeTag, predicate func(event.Envelope) (bool, error)) event.Envelope {
	entry, ok := c.sys.lookup(c.self)
	if !ok {
		return event.Envelope{}
	}

	var slot struct {
		mu  sync.Mutex
		env event.Envelope
		err error
		got bool
	}
	await := &mailbox.Await{
		Types:     types,
		Predicate: predicate,
		Deliver: func(e event.Envelope) {
			slot.mu.Lock()
			slot.env, slot.got = e, true
			slot.mu.Unlock()
		},
		Failed: func(err error) {
			slot.mu.Lock()
			slot.err, slot.got = err, true
			slot.mu.Unlock()
		},
	}

	if env, immediate := entry.mailbox.InstallReceive(await); immediate {
		return env
	}

	dep := operation.Func{
		Desc: fmt.Sprintf("receive-await(%s)", c.self),
		Fn: func() bool {
			slot.mu.Lock()
			defer slot.mu.Unlock()
			return slot.got
		},
	}
	c.sys.Scheduler().WaitFor(c.op, dep)

	slot.mu.Lock()
	env, err := slot.env, slot.err
	slot.mu.Unlock()
	if err != nil {
		c.sys.Scheduler().NotifyAssertionFailure(bugs.AssertionFailed, c.op, "receive predicate: %v", err)
	}
	return env
}
