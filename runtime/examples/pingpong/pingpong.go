// Package pingpong is the first seed scenario: two actors bounce a fixed
// number of Ping/Pong events and the test asserts the exchange terminates
// having run exactly the expected number of rounds, under any schedule.
package pingpong

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
)

// Rounds is how many Ping/Pong exchanges the scenario runs before halting.
const Rounds = 5

var (
	wireTag = event.NewTypeTag("pingpong.Wire")
	pingTag = event.NewTypeTag("pingpong.Ping")
	pongTag = event.NewTypeTag("pingpong.Pong")
)

// Wire tells a freshly created Player who its peer is. Wiring through a
// message instead of a constructor argument avoids any race between actor
// creation (itself a scheduling point) and the peer id becoming known.
type Wire struct {
	event.Base
	Peer actor.ActorId
}

// NewWire builds a Wire event naming peer.
func NewWire(peer actor.ActorId) Wire { return Wire{Base: event.NewBase(wireTag), Peer: peer} }

// Ping carries the round counter from sender to receiver.
type Ping struct {
	event.Base
	Round int
}

// NewPing builds a Ping for the given round.
func NewPing(round int) Ping { return Ping{Base: event.NewBase(pingTag), Round: round} }

// Pong is the reply to a Ping, carrying the same round counter.
type Pong struct {
	event.Base
	Round int
}

// NewPong builds a Pong for the given round.
func NewPong(round int) Pong { return Pong{Base: event.NewBase(pongTag), Round: round} }

// Player is an actor that replies to Ping with Pong and to Pong with the
// next round's Ping, until Rounds is reached, then halts both itself and
// its peer.
type Player struct {
	peer      actor.ActorId
	isStarter bool
	seen      int
}

// NewStarter builds the Player that kicks off round 0 once wired to its
// peer.
func NewStarter() *Player { return &Player{isStarter: true} }

// NewResponder builds the Player that only ever replies.
func NewResponder() *Player { return &Player{} }

func (p *Player) PreStart(ctx *actor.Context) error { return nil }

func (p *Player) Receive(ctx *actor.Context) {
	switch msg := ctx.Message().(type) {
	case Wire:
		p.peer = msg.Peer
		if p.isStarter {
			ctx.Send(p.peer, NewPing(0))
		}
	case Ping:
		p.seen++
		if msg.Round >= Rounds {
			ctx.Halt()
			ctx.HaltActor(p.peer)
			return
		}
		ctx.Send(p.peer, NewPong(msg.Round))
	case Pong:
		p.seen++
		if msg.Round+1 >= Rounds {
			ctx.Halt()
			ctx.HaltActor(p.peer)
			return
		}
		ctx.Send(p.peer, NewPing(msg.Round+1))
	default:
		ctx.Unhandled()
	}
}

func (p *Player) PostStop(ctx *actor.Context) error { return nil }

// Seen reports how many messages this Player processed, for test
// assertions.
func (p *Player) Seen() int { return p.seen }

var _ actor.Actor = (*Player)(nil)
