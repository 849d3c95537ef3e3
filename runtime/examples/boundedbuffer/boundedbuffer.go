// Package boundedbuffer is the fourth seed scenario: a producer and a
// consumer rendezvous over a capacity-one buffer by exchanging Item and
// SpaceAvailable events through plain Receive handlers, with a wiring bug
// that leaves both of them waiting for an event the other will never send
// — a genuine deadlock the scheduler must detect and report, not mistake
// for a hung process.
package boundedbuffer

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
)

var (
	itemTag  = event.NewTypeTag("boundedbuffer.Item")
	spaceTag = event.NewTypeTag("boundedbuffer.SpaceAvailable")
)

// Item is a unit of work the producer hands the consumer.
type Item struct {
	event.Base
	Seq int
}

// NewItem builds an Item.
func NewItem(seq int) Item { return Item{Base: event.NewBase(itemTag), Seq: seq} }

// SpaceAvailable tells the producer the consumer is ready for the next
// Item. The bug in this scenario: the consumer only sends it after
// consuming a second item it will never receive, so the producer's first
// WaitFor on it never becomes satisfied once the buffer's single slot is
// full.
type SpaceAvailable struct{ event.Base }

// NewSpaceAvailable builds a SpaceAvailable signal.
func NewSpaceAvailable() SpaceAvailable { return SpaceAvailable{Base: event.NewBase(spaceTag)} }

// Producer sends Items to a single consumer, waiting for SpaceAvailable
// before sending the next one once the one-slot buffer is occupied. When a
// SpaceAvailable arrives after all total items were sent, it halts the
// consumer and then itself.
type Producer struct {
	consumer actor.ActorId
	total    int
	sent     int
}

// NewProducer builds a Producer that will send total items to consumer.
func NewProducer(consumer actor.ActorId, total int) *Producer {
	return &Producer{consumer: consumer, total: total}
}

func (p *Producer) PreStart(ctx *actor.Context) error {
	ctx.Send(p.consumer, NewItem(p.sent))
	p.sent++
	return nil
}

func (p *Producer) Receive(ctx *actor.Context) {
	switch ctx.Message().(type) {
	case SpaceAvailable:
		if p.sent >= p.total {
			ctx.HaltActor(p.consumer)
			ctx.Halt()
			return
		}
		ctx.Send(p.consumer, NewItem(p.sent))
		p.sent++
	default:
		ctx.Unhandled()
	}
}

func (p *Producer) PostStop(ctx *actor.Context) error { return nil }

var _ actor.Actor = (*Producer)(nil)

// Consumer holds a single slot: it must free it (sending SpaceAvailable)
// before it can accept another Item. grantEvery controls how often it
// actually does — grantEvery == 1 is the correct, livelock-free consumer;
// any larger value starves the producer once the slot fills, producing a
// genuine deadlock rather than a liveness violation, since neither side is
// ever runnable again.
type Consumer struct {
	grantEvery int
	received   int
}

// NewConsumer builds a Consumer that grants SpaceAvailable back every
// grantEvery items received.
func NewConsumer(grantEvery int) *Consumer { return &Consumer{grantEvery: grantEvery} }

func (c *Consumer) PreStart(ctx *actor.Context) error { return nil }

func (c *Consumer) Receive(ctx *actor.Context) {
	switch ctx.Message().(type) {
	case Item:
		c.received++
		if c.received%c.grantEvery == 0 {
			ctx.Send(ctx.Sender(), NewSpaceAvailable())
		}
	default:
		ctx.Unhandled()
	}
}

func (c *Consumer) PostStop(ctx *actor.Context) error { return nil }

// Received reports how many items this Consumer has processed.
func (c *Consumer) Received() int { return c.received }

var _ actor.Actor = (*Consumer)(nil)
