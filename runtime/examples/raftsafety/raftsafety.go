// Package raftsafety is the third seed scenario: a drastically simplified
// leader-election mock, driven by a safety monitor asserting the single
// invariant that matters — at most one leader per term.
package raftsafety

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/monitor"
	"github.com/microsoft/coyote-sub017/runtime/rand"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

// MonitorName identifies the registered safety monitor.
const MonitorName = "AtMostOneLeaderPerTerm"

var becameLeaderTag = event.NewTypeTag("raftsafety.BecameLeader")

// BecameLeader is notified to the monitor whenever a node wins an election
// for a term.
type BecameLeader struct {
	event.Base
	Node int
	Term int
}

// NewBecameLeader builds a BecameLeader notification.
func NewBecameLeader(node, term int) BecameLeader {
	return BecameLeader{Base: event.NewBase(becameLeaderTag), Node: node, Term: term}
}

const (
	stateWatching monitor.StateID = "watching"
)

// Def returns the monitor definition: one neutral state that remembers,
// per term, which node already won it, and raises a safety violation the
// moment a second node claims the same term.
func Def() monitor.Def {
	leaders := make(map[int]int) // term -> node
	return monitor.Def{
		Name:  MonitorName,
		Start: stateWatching,
		States: map[monitor.StateID]monitor.StateDef{
			stateWatching: {
				Temperature: monitor.Neutral,
				Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
					msg, ok := ev.(BecameLeader)
					if !ok {
						return monitor.Stay()
					}
					if existing, claimed := leaders[msg.Term]; claimed {
						ctx.Assert(existing == msg.Node,
							"term %d has two leaders: node %d and node %d", msg.Term, existing, msg.Node)
						return monitor.Stay()
					}
					leaders[msg.Term] = msg.Node
					return monitor.Stay()
				},
			},
		},
	}
}

// ElectionPool is a set of nodes that all race to become leader of the same
// term; a node wins by a controlled coin flip, and — the bug — two nodes
// can both flip heads before either learns the other already claimed the
// term, since nothing synchronizes the check against the claim.
type ElectionPool struct {
	t     *testengine.T
	term  int
	nodes int
}

// NewElectionPool builds a pool of nodes electing a leader for term.
func NewElectionPool(t *testengine.T, term, nodes int) *ElectionPool {
	return &ElectionPool{t: t, term: term, nodes: nodes}
}

// candidate is one node attempting to become leader of term.
type candidate struct {
	pool *ElectionPool
	id   int
}

func (c *candidate) PreStart(ctx *actor.Context) error {
	won := rand.Boolean(ctx.Scheduler(), ctx.Operation())
	if won {
		c.pool.t.Notify(MonitorName, NewBecameLeader(c.id, c.pool.term))
	}
	// Halt only takes effect when observed after a Receive call, so a
	// candidate with nothing left to do halts itself via a self-addressed
	// Halt event rather than ctx.Halt() here.
	ctx.HaltActor(ctx.Self())
	return nil
}

func (c *candidate) Receive(ctx *actor.Context) { ctx.Unhandled() }

func (c *candidate) PostStop(ctx *actor.Context) error { return nil }

var _ actor.Actor = (*candidate)(nil)

// Start spawns one actor per node, each independently racing for
// leadership of the pool's term.
func (p *ElectionPool) Start(parent *testengine.T) {
	for i := 0; i < p.nodes; i++ {
		id := i
		parent.CreateActor("candidate", func() actor.Actor { return &candidate{pool: p, id: id} })
	}
}
