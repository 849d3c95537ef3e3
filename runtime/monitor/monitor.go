// Package monitor implements specification observers: small state machines
// without a mailbox, driven synchronously inline at the point user or
// actor code calls Notify. Safety assertions raise a bug immediately;
// liveness is tracked via a per-monitor hot-state temperature counter that
// the scheduler increments on every global scheduling step.
package monitor

import (
	"fmt"

	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/event"
)

// StateID names one state of a monitor's internal state machine.
type StateID string

// Temperature labels a monitor state for liveness accounting.
type Temperature int

const (
	// Neutral states are neither hot nor cold: they neither accumulate nor
	// reset the liveness temperature counter.
	Neutral Temperature = iota
	// Hot states accumulate temperature on every scheduling step spent in
	// them; crossing the configured threshold is a potential liveness bug.
	Hot
	// Cold states reset the temperature counter to zero.
	Cold
)

// Result is what a monitor handler returns: either Stay in the current
// state or transition to another one. Returned, not thrown, per the
// exception-based-control-flow re-architecture in spec.md §9.
type Result struct {
	next    StateID
	changed bool
}

// Stay keeps the monitor in its current state.
func Stay() Result { return Result{} }

// GoTo transitions the monitor to state s.
func GoTo(s StateID) Result { return Result{next: s, changed: true} }

// Handler processes one event while the monitor is in a particular state.
// It may call ctx.Assert to raise a safety violation.
type Handler func(ctx *Context, ev event.Event) Result

// StateDef declares one monitor state: its temperature label and handler.
type StateDef struct {
	Temperature Temperature
	Handle      Handler
}

// Def declares a monitor type: its states and starting state.
type Def struct {
	Name   string
	Start  StateID
	States map[StateID]StateDef
}

// Context is handed to a monitor Handler for the duration of one Notify
// call.
type Context struct {
	Monitor *Instance
	report  func(format string, args ...any)
}

// Assert raises a safety-violation bug if cond is false.
func (c *Context) Assert(cond bool, format string, args ...any) {
	if !cond {
		c.report(format, args...)
	}
}

// Instance is one running monitor: its definition plus mutable state.
type Instance struct {
	Def         Def
	Current     StateID
	Temperature int
}

// NewInstance creates a monitor instance in its start state.
func NewInstance(def Def) *Instance {
	return &Instance{Def: def, Current: def.Start}
}

func (i *Instance) currentTemperature() Temperature {
	return i.Def.States[i.Current].Temperature
}

// Engine owns every registered monitor instance for one iteration and is
// driven by the scheduler's per-step tick plus user/actor Notify calls.
type Engine struct {
	instances map[string]*Instance
	order     []string
	threshold int
	onBug     func(*bugs.Bug)
	step      int
}

// NewEngine builds an Engine whose liveness threshold is T_live.
func NewEngine(threshold int, onBug func(*bugs.Bug)) *Engine {
	return &Engine{instances: make(map[string]*Instance), threshold: threshold, onBug: onBug}
}

// Register installs a monitor definition. A duplicate registration of the
// same name is tolerated as a no-op (the first registration wins), not
// rejected; nothing is logged for it.
func (e *Engine) Register(def Def) {
	if _, exists := e.instances[def.Name]; exists {
		return
	}
	e.instances[def.Name] = NewInstance(def)
	e.order = append(e.order, def.Name)
}

// Notify drives one synchronous dispatch step of the named monitor. It is
// not itself a scheduling point: it runs inline in the caller's operation.
func (e *Engine) Notify(name string, ev event.Event) {
	inst, ok := e.instances[name]
	if !ok {
		return
	}
	state, ok := inst.Def.States[inst.Current]
	if !ok {
		return
	}
	if state.Handle == nil {
		return
	}
	ctx := &Context{Monitor: inst, report: func(format string, args ...any) {
		bug := bugs.New(bugs.SafetyViolation, e.step, "monitor %s: %s", name, fmt.Sprintf(format, args...))
		if e.onBug != nil {
			e.onBug(bug)
		}
	}}
	result := state.Handle(ctx, ev)
	if result.changed && result.next != inst.Current {
		inst.Current = result.next
		if inst.currentTemperature() == Cold {
			inst.Temperature = 0
		}
	}
}

// Tick is called by the scheduler once per global scheduling step, with its
// own lock already held: every monitor currently in a Hot state has its
// temperature incremented, and crossing the threshold raises a potential
// liveness bug. Tick returns the bug directly rather than going through
// onBug, since the scheduler invokes it from inside its own critical
// section and cannot tolerate a synchronous re-entrant call back into
// itself.
func (e *Engine) Tick(step int, fair bool) *bugs.Bug {
	e.step = step
	for _, name := range e.order {
		inst := e.instances[name]
		if inst.currentTemperature() != Hot {
			continue
		}
		inst.Temperature++
		if fair && e.threshold > 0 && inst.Temperature > e.threshold {
			return bugs.New(bugs.LivenessViolation, step,
				"monitor %s stayed hot in state %s for %d steps (threshold %d)",
				name, inst.Current, inst.Temperature, e.threshold)
		}
	}
	return nil
}

// FinalCheck is run once at iteration end: any monitor still in a Hot
// state is a liveness violation, but only under a fair schedule.
func (e *Engine) FinalCheck(fair bool) *bugs.Bug {
	if !fair {
		return nil
	}
	for _, name := range e.order {
		inst := e.instances[name]
		if inst.currentTemperature() == Hot {
			return bugs.New(bugs.LivenessViolation, e.step,
				"monitor %s ended the iteration hot in state %s", name, inst.Current)
		}
	}
	return nil
}

// Instance returns the named monitor's live instance, for tests that want
// to assert on its current state directly.
func (e *Engine) Instance(name string) (*Instance, bool) {
	inst, ok := e.instances[name]
	return inst, ok
}
