// Package timerliveness is the sixth seed scenario: a periodic timer fires
// repeatedly but a buggy watcher defers every TimerElapsed it receives
// instead of acting on it, so a monitor waiting for a heartbeat never sees
// one and stays hot forever — a liveness bug whose root cause is a timer
// callback, not a plain message handler.
package timerliveness

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/monitor"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
	"github.com/microsoft/coyote-sub017/runtime/timer"
)

// MonitorName identifies the registered liveness monitor.
const MonitorName = "HeartbeatMonitor"

const (
	stateWaiting monitor.StateID = "waiting"
	stateBeat    monitor.StateID = "beat"
)

var heartbeatTag = event.NewTypeTag("timerliveness.Heartbeat")

// Heartbeat is notified to the monitor each time the watcher actually acts
// on a fired timer.
type Heartbeat struct{ event.Base }

// NewHeartbeat builds a Heartbeat notification.
func NewHeartbeat() Heartbeat { return Heartbeat{Base: event.NewBase(heartbeatTag)} }

// Def returns the monitor definition: Waiting is hot and Beat is cold. The
// first Heartbeat moves the monitor to Beat and later Heartbeats keep it
// there, so the monitor is hot only until the watcher first acts on a fired
// timer; any other notification sends it back to Waiting.
func Def() monitor.Def {
	return monitor.Def{
		Name:  MonitorName,
		Start: stateWaiting,
		States: map[monitor.StateID]monitor.StateDef{
			stateWaiting: {
				Temperature: monitor.Hot,
				Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
					if _, ok := ev.(Heartbeat); ok {
						return monitor.GoTo(stateBeat)
					}
					return monitor.Stay()
				},
			},
			stateBeat: {
				Temperature: monitor.Cold,
				Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
					if _, ok := ev.(Heartbeat); ok {
						return monitor.Stay()
					}
					return monitor.GoTo(stateWaiting)
				},
			},
		},
	}
}

// Watcher arms a periodic timer on itself and either notifies a Heartbeat
// on every fire, halting once maxBeats is reached (the correct behavior),
// or defers every fire forever (honorHeartbeats == false), the bug this
// scenario exists to catch.
type Watcher struct {
	t               *testengine.T
	timers          *timer.Service
	honorHeartbeats bool
	maxBeats        int
	beats           int
	timerID         timer.ID
}

// NewWatcher builds a Watcher that, if honorHeartbeats, halts after
// maxBeats timer fires.
func NewWatcher(t *testengine.T, honorHeartbeats bool, maxBeats int) *Watcher {
	return &Watcher{t: t, timers: t.Timers(), honorHeartbeats: honorHeartbeats, maxBeats: maxBeats}
}

const timerDelaySteps = 3

func (w *Watcher) PreStart(ctx *actor.Context) error {
	w.timerID = w.timers.StartPeriodicTimer(ctx.Operation(), ctx.Self(), timerDelaySteps, nil)
	return nil
}

func (w *Watcher) Receive(ctx *actor.Context) {
	if _, ok := ctx.Message().(event.TimerElapsed); !ok {
		ctx.Unhandled()
		return
	}
	if !w.honorHeartbeats {
		ctx.Defer()
		return
	}
	w.beats++
	w.t.Notify(MonitorName, NewHeartbeat())
	if w.beats >= w.maxBeats {
		w.timers.StopTimer(w.timerID)
		ctx.Halt()
	}
}

func (w *Watcher) PostStop(ctx *actor.Context) error { return nil }

var _ actor.Actor = (*Watcher)(nil)
