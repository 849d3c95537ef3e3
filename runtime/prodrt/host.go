package prodrt

import (
	"context"
	"fmt"
	"time"

	goakt "github.com/tochemey/goakt/v3/actor"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/event"
)

const askTimeout = 5 * time.Second

// Actor is the production-mode counterpart of runtime/actor.Actor: the
// same PreStart/Receive/PostStop lifecycle over the same event.Event
// messages, but dispatched for real by a goakt.ActorSystem rather than
// the controlled scheduler. A Context here exposes no exploration state
// (there is none to expose) — everything else about writing one reads
// the same as writing a runtime/actor.Actor.
type Actor interface {
	PreStart(ctx *Context) error
	Receive(ctx *Context)
	PostStop(ctx *Context) error
}

// Context is handed to an Actor's lifecycle and Receive methods.
type Context struct {
	sys      goakt.ActorSystem
	registry *Registry
	logger   *rtlog.Logger

	rctx *goakt.ReceiveContext
	ev   event.Event

	halting bool
}

// Self returns the receiving actor's PID.
func (c *Context) Self() *goakt.PID {
	if c.rctx != nil {
		return c.rctx.Self()
	}
	return nil
}

// Message returns the event currently being processed, or nil outside
// Receive, or for a non-prodrt-encoded message (e.g. a goakt lifecycle
// notification, which a Receive implementation should check for via
// RawMessage before assuming Message is populated).
func (c *Context) Message() event.Event { return c.ev }

// RawMessage returns the message exactly as goakt delivered it, before
// any prodrt decoding — lets an Actor observe goaktpb.PostStart,
// goaktpb.Terminated, and similar lifecycle notifications.
func (c *Context) RawMessage() any {
	if c.rctx == nil {
		return nil
	}
	return c.rctx.Message()
}

// Sender returns the PID that sent the current message, nil if there was
// none (e.g. a system-originated lifecycle message).
func (c *Context) Sender() *goakt.PID {
	if c.rctx == nil {
		return nil
	}
	return c.rctx.Sender()
}

// Logger returns the runtime's shared logger.
func (c *Context) Logger() *rtlog.Logger { return c.logger }

// Send delivers ev to target, fire-and-forget.
func (c *Context) Send(ctx context.Context, target *goakt.PID, ev event.Event) error {
	wire, err := Encode(ev)
	if err != nil {
		return err
	}
	return goakt.Tell(ctx, target, wire)
}

// Ask delivers ev to target and blocks for a response, decoded back to an
// event.Event using the Context's registry.
func (c *Context) Ask(ctx context.Context, target *goakt.PID, ev event.Event) (event.Event, error) {
	wire, err := Encode(ev)
	if err != nil {
		return nil, err
	}
	reply, err := goakt.Ask(ctx, target, wire, askTimeout)
	if err != nil {
		return nil, err
	}
	decoded, ok, err := c.registry.Decode(reply)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("prodrt: ask reply was not a prodrt-encoded event (%T)", reply)
	}
	return decoded, nil
}

// Respond replies to the current Ask, if the current message was sent
// that way.
func (c *Context) Respond(ev event.Event) {
	if c.rctx == nil {
		return
	}
	wire, err := Encode(ev)
	if err != nil {
		c.logger.Errorf("prodrt: encode response: %v", err)
		return
	}
	c.rctx.Response(wire)
}

// CreateActor spawns a new top-level production actor running impl.
func (c *Context) CreateActor(ctx context.Context, name string, impl Actor) (*goakt.PID, error) {
	return c.sys.Spawn(ctx, name, &bridge{impl: impl, sys: c.sys, registry: c.registry, logger: c.logger})
}

// Halt requests the receiving actor shut down after the current Receive
// call returns.
func (c *Context) Halt() { c.halting = true }

// bridge adapts an Actor onto goakt's actor.Actor interface, decoding
// prodrt-encoded messages back into event.Event before handing them to
// impl.Receive.
type bridge struct {
	impl     Actor
	sys      goakt.ActorSystem
	registry *Registry
	logger   *rtlog.Logger
}

var _ goakt.Actor = (*bridge)(nil)

func (b *bridge) PreStart(ctx context.Context) error {
	return b.impl.PreStart(&Context{sys: b.sys, registry: b.registry, logger: b.logger})
}

func (b *bridge) Receive(rctx *goakt.ReceiveContext) {
	c := &Context{sys: b.sys, registry: b.registry, logger: b.logger, rctx: rctx}

	if ev, ok, err := b.registry.Decode(rctx.Message()); err != nil {
		b.logger.Errorf("prodrt: decode message for %s: %v", rctx.Self().Name(), err)
		rctx.Unhandled()
		return
	} else if ok {
		c.ev = ev
	}

	b.impl.Receive(c)
	if c.halting {
		rctx.Shutdown()
	}
}

func (b *bridge) PostStop(ctx context.Context) error {
	return b.impl.PostStop(&Context{sys: b.sys, registry: b.registry, logger: b.logger})
}
