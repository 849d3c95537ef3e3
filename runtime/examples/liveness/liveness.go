// Package liveness is the fifth seed scenario: a liveness monitor watching
// for a "ready" notification that a buggy looper never sends, demonstrating
// a hot-state threshold violation under a fair strategy rather than a
// safety assertion or a deadlock.
package liveness

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/monitor"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

// MonitorName identifies the registered liveness monitor.
const MonitorName = "EventuallyReady"

const (
	stateWaiting monitor.StateID = "waiting"
	stateReady   monitor.StateID = "ready"
)

var (
	tickTag    = event.NewTypeTag("liveness.Tick")
	readiedTag = event.NewTypeTag("liveness.Readied")
)

// Tick is the looper's self-addressed keep-going message.
type Tick struct{ event.Base }

// NewTick builds a Tick.
func NewTick() Tick { return Tick{Base: event.NewBase(tickTag)} }

// Readied is notified to the monitor once the looper finally becomes
// ready.
type Readied struct{ event.Base }

// NewReadied builds a Readied notification.
func NewReadied() Readied { return Readied{Base: event.NewBase(readiedTag)} }

// Def returns the monitor definition: Waiting is hot (a ready notification
// is always expected eventually); Ready is cold.
func Def() monitor.Def {
	return monitor.Def{
		Name:  MonitorName,
		Start: stateWaiting,
		States: map[monitor.StateID]monitor.StateDef{
			stateWaiting: {
				Temperature: monitor.Hot,
				Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
					if _, ok := ev.(Readied); ok {
						return monitor.GoTo(stateReady)
					}
					return monitor.Stay()
				},
			},
			stateReady: {
				Temperature: monitor.Cold,
				Handle:      func(ctx *monitor.Context, ev event.Event) monitor.Result { return monitor.Stay() },
			},
		},
	}
}

// Looper resends itself Tick forever, notifying the monitor Readied only
// after readyAfter ticks — readyAfter <= 0 means never, the buggy variant
// this scenario exists to catch.
type Looper struct {
	t          *testengine.T
	readyAfter int
	ticks      int
}

// NewLooper builds a Looper that becomes ready after readyAfter ticks (or
// never, if readyAfter <= 0).
func NewLooper(t *testengine.T, readyAfter int) *Looper {
	return &Looper{t: t, readyAfter: readyAfter}
}

func (l *Looper) PreStart(ctx *actor.Context) error {
	ctx.Send(ctx.Self(), NewTick())
	return nil
}

func (l *Looper) Receive(ctx *actor.Context) {
	switch ctx.Message().(type) {
	case Tick:
		l.ticks++
		if l.readyAfter > 0 && l.ticks >= l.readyAfter {
			l.t.Notify(MonitorName, NewReadied())
			ctx.Halt()
			return
		}
		ctx.Send(ctx.Self(), NewTick())
	default:
		ctx.Unhandled()
	}
}

func (l *Looper) PostStop(ctx *actor.Context) error { return nil }

var _ actor.Actor = (*Looper)(nil)
