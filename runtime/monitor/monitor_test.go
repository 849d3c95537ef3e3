package monitor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/monitor"
)

const (
	stateIdle   monitor.StateID = "idle"
	stateHot    monitor.StateID = "hot"
	stateClosed monitor.StateID = "closed"
)

var openTag = event.NewTypeTag("monitor_test.Open")
var closeTag = event.NewTypeTag("monitor_test.Close")

type openEvent struct{ event.Base }
type closeEvent struct{ event.Base }

func lockDef() monitor.Def {
	return monitor.Def{
		Name:  "lock",
		Start: stateIdle,
		States: map[monitor.StateID]monitor.StateDef{
			stateIdle: {Temperature: monitor.Cold, Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
				if ev.Tag().Is(openTag) {
					return monitor.GoTo(stateHot)
				}
				return monitor.Stay()
			}},
			stateHot: {Temperature: monitor.Hot, Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
				ctx.Assert(!ev.Tag().Is(openTag), "double open while already held")
				if ev.Tag().Is(closeTag) {
					return monitor.GoTo(stateClosed)
				}
				return monitor.Stay()
			}},
			stateClosed: {Temperature: monitor.Cold, Handle: func(ctx *monitor.Context, ev event.Event) monitor.Result {
				return monitor.GoTo(stateIdle)
			}},
		},
	}
}

func TestNotifyTransitionsAndResetsColdTemperature(t *testing.T) {
	var reported *bugs.Bug
	e := monitor.NewEngine(5, func(b *bugs.Bug) { reported = b })
	e.Register(lockDef())

	e.Notify("lock", openEvent{Base: event.NewBase(openTag)})
	inst, ok := e.Instance("lock")
	require.True(t, ok)
	require.Equal(t, stateHot, inst.Current)

	e.Tick(1, true)
	e.Tick(2, true)
	require.Equal(t, 2, inst.Temperature)

	e.Notify("lock", closeEvent{Base: event.NewBase(closeTag)})
	require.Equal(t, stateClosed, inst.Current)
	require.Equal(t, 0, inst.Temperature)
	require.Nil(t, reported)
}

func TestAssertFailureReportsSafetyViolation(t *testing.T) {
	var reported *bugs.Bug
	e := monitor.NewEngine(5, func(b *bugs.Bug) { reported = b })
	e.Register(lockDef())

	e.Notify("lock", openEvent{Base: event.NewBase(openTag)})
	e.Notify("lock", openEvent{Base: event.NewBase(openTag)})

	require.NotNil(t, reported)
	require.Equal(t, bugs.SafetyViolation, reported.Kind)
}

func TestTickReportsLivenessBugOnlyWhenFairAndOverThreshold(t *testing.T) {
	e := monitor.NewEngine(2, nil)
	e.Register(lockDef())
	e.Notify("lock", openEvent{Base: event.NewBase(openTag)})

	require.Nil(t, e.Tick(1, true))
	require.Nil(t, e.Tick(2, true))
	bug := e.Tick(3, true)
	require.NotNil(t, bug)
	require.Equal(t, bugs.LivenessViolation, bug.Kind)
}

func TestTickNeverReportsLivenessBugUnderUnfairStrategy(t *testing.T) {
	e := monitor.NewEngine(1, nil)
	e.Register(lockDef())
	e.Notify("lock", openEvent{Base: event.NewBase(openTag)})

	for step := 1; step <= 10; step++ {
		require.Nil(t, e.Tick(step, false))
	}
}

func TestFinalCheckFlagsHotMonitorOnlyUnderFairSchedule(t *testing.T) {
	e := monitor.NewEngine(5, nil)
	e.Register(lockDef())
	e.Notify("lock", openEvent{Base: event.NewBase(openTag)})

	require.Nil(t, e.FinalCheck(false))
	require.NotNil(t, e.FinalCheck(true))
}

func TestRegisterIgnoresDuplicateNameFirstWins(t *testing.T) {
	e := monitor.NewEngine(5, nil)
	e.Register(lockDef())

	other := lockDef()
	other.Start = stateHot
	e.Register(other)

	inst, ok := e.Instance("lock")
	require.True(t, ok)
	require.Equal(t, stateIdle, inst.Current, "second registration under the same name must be ignored")
}
