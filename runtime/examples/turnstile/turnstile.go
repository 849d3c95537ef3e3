// Package turnstile is the seventh seed scenario: a single actor built on
// runtime/statemachine rather than a bare actor.Actor switch, the way
// HildaM-scaled-mcp's StateMachineActor sits on top of a plain goakt/v3
// actor. It models a coin-operated gate with a nested alarm state, giving
// the hierarchical state machine's Goto/Push/Pop/Raise, defer re-admission,
// an ignore set, and wildcard-vs-specific-binding precedence a real scenario
// to run under, rather than existing only as unexercised package surface.
package turnstile

import (
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/statemachine"
)

var (
	coinTag       = event.NewTypeTag("turnstile.CoinInserted")
	pushTag       = event.NewTypeTag("turnstile.PushBar")
	escalateTag   = event.NewTypeTag("turnstile.Escalate")
	alarmResetTag = event.NewTypeTag("turnstile.AlarmReset")
	inspectTag    = event.NewTypeTag("turnstile.Inspect")
	maintainTag   = event.NewTypeTag("turnstile.Maintenance")
	shutdownTag   = event.NewTypeTag("turnstile.Shutdown")
)

// CoinInserted deposits one coin.
type CoinInserted struct{ event.Base }

// NewCoinInserted builds a CoinInserted event.
func NewCoinInserted() CoinInserted { return CoinInserted{Base: event.NewBase(coinTag)} }

// PushBar is someone pushing on the turnstile's arm.
type PushBar struct{ event.Base }

// NewPushBar builds a PushBar event.
func NewPushBar() PushBar { return PushBar{Base: event.NewBase(pushTag)} }

// escalate is raised internally (never sent through a mailbox) when the bar
// is pushed again while the alarm is already sounding.
type escalate struct{ event.Base }

func newEscalate() escalate { return escalate{Base: event.NewBase(escalateTag)} }

// AlarmReset is the maintenance signal that silences a sounding alarm.
type AlarmReset struct{ event.Base }

// NewAlarmReset builds an AlarmReset event.
func NewAlarmReset() AlarmReset { return AlarmReset{Base: event.NewBase(alarmResetTag)} }

// Inspect asks the turnstile to record an inspection; bound only in Locked,
// so it demonstrates a Push'd state (Alarm) falling through to a specific
// binding declared on the state beneath it.
type Inspect struct{ event.Base }

// NewInspect builds an Inspect event.
func NewInspect() Inspect { return Inspect{Base: event.NewBase(inspectTag)} }

// Maintenance is bound nowhere specifically; only Alarm's Wildcard answers
// it, demonstrating the plain wildcard-catch-all path.
type Maintenance struct{ event.Base }

// NewMaintenance builds a Maintenance event.
func NewMaintenance() Maintenance { return Maintenance{Base: event.NewBase(maintainTag)} }

// Shutdown halts the turnstile.
type Shutdown struct{ event.Base }

// NewShutdown builds a Shutdown event.
func NewShutdown() Shutdown { return Shutdown{Base: event.NewBase(shutdownTag)} }

const (
	stateLocked   statemachine.StateID = "locked"
	stateUnlocked statemachine.StateID = "unlocked"
	stateAlarm    statemachine.StateID = "alarm"
)

// Turnstile is a coin-gate actor built directly on statemachine.Machine.
// Locked accepts a coin (Goto Unlocked) or reacts to an unpaid push by
// sounding the alarm (Push, leaving Locked on the stack beneath it);
// Unlocked lets a push through (Goto Locked) and ignores surplus coins;
// Alarm defers coins until reset, escalates on a repeat push via Raise, and
// falls through to Locked's Inspect binding rather than answering it itself.
type Turnstile struct {
	*statemachine.Machine

	coinsAccepted int
	coinsIgnored  int
	pushesLet     int
	alarmsTripped int
	escalations   int
	inspections   int
	maintenance   int
	deferrals     int
}

// New builds a Turnstile starting in the Locked state.
func New() *Turnstile {
	t := &Turnstile{}

	locked := statemachine.State(stateLocked).
		On(coinTag, func(ctx *actor.Context) statemachine.Transition {
			t.coinsAccepted++
			return statemachine.Goto(stateUnlocked)
		}).
		On(pushTag, func(ctx *actor.Context) statemachine.Transition {
			t.alarmsTripped++
			return statemachine.Push(stateAlarm)
		}).
		On(inspectTag, func(ctx *actor.Context) statemachine.Transition {
			t.inspections++
			return statemachine.Stay()
		})

	unlocked := statemachine.State(stateUnlocked).
		On(pushTag, func(ctx *actor.Context) statemachine.Transition {
			t.pushesLet++
			return statemachine.Goto(stateLocked)
		}).
		Ignore(coinTag)

	alarm := statemachine.State(stateAlarm).
		On(pushTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Raise(newEscalate())
		}).
		On(escalateTag, func(ctx *actor.Context) statemachine.Transition {
			t.escalations++
			return statemachine.Stay()
		}).
		On(alarmResetTag, func(ctx *actor.Context) statemachine.Transition {
			return statemachine.Pop()
		}).
		Defer(coinTag).
		Wildcard(func(ctx *actor.Context) statemachine.Transition {
			t.maintenance++
			return statemachine.Stay()
		})

	locked.On(shutdownTag, func(ctx *actor.Context) statemachine.Transition {
		return statemachine.Halt()
	})

	t.Machine = statemachine.New(stateLocked, locked, unlocked, alarm).
		OnEventDeferred(func(ctx *actor.Context, ev event.Event) { t.deferrals++ }).
		OnEventIgnored(func(ctx *actor.Context, ev event.Event) { t.coinsIgnored++ })

	return t
}

// CoinsAccepted reports how many coins moved the turnstile from Locked to
// Unlocked.
func (t *Turnstile) CoinsAccepted() int { return t.coinsAccepted }

// CoinsIgnored reports how many coins were silently dropped while Unlocked.
func (t *Turnstile) CoinsIgnored() int { return t.coinsIgnored }

// PushesLet reports how many pushes were let through from Unlocked.
func (t *Turnstile) PushesLet() int { return t.pushesLet }

// AlarmsTripped reports how many unpaid pushes sounded the alarm.
func (t *Turnstile) AlarmsTripped() int { return t.alarmsTripped }

// Escalations reports how many repeat pushes escalated an already-sounding
// alarm, via Raise.
func (t *Turnstile) Escalations() int { return t.escalations }

// Inspections reports how many Inspect events Locked answered, including
// ones that arrived while Alarm was pushed on top of it.
func (t *Turnstile) Inspections() int { return t.inspections }

// Maintenance reports how many Maintenance events Alarm's wildcard caught.
func (t *Turnstile) Maintenance() int { return t.maintenance }

// Deferrals reports how many coins were deferred while Alarm was active.
func (t *Turnstile) Deferrals() int { return t.deferrals }

var _ actor.Actor = (*Turnstile)(nil)
