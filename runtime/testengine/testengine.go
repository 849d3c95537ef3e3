// Package testengine is the test-engine driver of spec.md §2: it runs a
// registered test program across N independently scheduled iterations,
// and on a discovered bug freezes the iteration and hands back its
// reproducible trace. No coverage report is collected. Generalized from
// HildaM-scaled-mcp's test/harness and test/testutils, swapping the MCP
// HTTP client for a controlled ActorSystem per iteration.
package testengine

import (
	"fmt"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/monitor"
	"github.com/microsoft/coyote-sub017/runtime/scheduler"
	"github.com/microsoft/coyote-sub017/runtime/strategy"
	"github.com/microsoft/coyote-sub017/runtime/timer"
	"github.com/microsoft/coyote-sub017/runtime/trace"
)

// T is handed to a TestFunc: the top-level entry point into one iteration's
// ActorSystem, monitors, and timer service.
type T struct {
	sys      *actor.System
	monitors *monitor.Engine
	timers   *timer.Service
}

// System returns the iteration's ActorSystem.
func (t *T) System() *actor.System { return t.sys }

// CreateActor spawns a top-level actor from the test driver.
func (t *T) CreateActor(name string, factory func() actor.Actor) actor.ActorId {
	return t.sys.CreateActor(t.sys.Root(), name, factory)
}

// Send delivers ev to target from the test driver, uncorrelated.
func (t *T) Send(target actor.ActorId, ev event.Event) {
	t.sys.Send(t.sys.Root(), target, actor.ActorId{}, event.NoGroup, ev)
}

// RegisterMonitor installs a monitor definition for this iteration.
func (t *T) RegisterMonitor(def monitor.Def) { t.monitors.Register(def) }

// Notify drives the named monitor's state machine with ev.
func (t *T) Notify(name string, ev event.Event) { t.monitors.Notify(name, ev) }

// Timers returns the iteration's timer service.
func (t *T) Timers() *timer.Service { return t.timers }

// Assert raises an assertion-failure bug if cond is false, freezing the
// iteration.
func (t *T) Assert(cond bool, format string, args ...any) {
	if !cond {
		t.sys.Scheduler().NotifyAssertionFailure(bugs.AssertionFailed, t.sys.Root(), format, args...)
	}
}

// Wait blocks until every actor created by the test program has run to
// completion or the iteration has otherwise concluded.
func (t *T) Wait() { t.sys.Wait() }

// TestFunc is one test program: it builds the initial actor topology and
// sends, then returns. The engine calls Wait on its behalf.
type TestFunc func(t *T)

// IterationReport summarizes a single scheduled run.
type IterationReport struct {
	Index   int
	Outcome scheduler.Outcome
	Bug     *bugs.Bug
	Steps   int
	Trace   trace.File
}

// Report summarizes an entire Run call.
type Report struct {
	Iterations      int
	Ran             int
	BugsFound       int
	Reports         []IterationReport
	FailingBug      *bugs.Bug
	FailingTrace    trace.File
	HasFailingTrace bool
}

// ExitCode maps a Report onto the process exit codes of spec.md §6:
// 0 = no bug found across all iterations, 1 = a bug was found,
// 2 = inconclusive (step bound hit with no bug), 3 = configuration error
// (uncontrolled invocation or replay divergence).
func (r Report) ExitCode() int {
	if r.FailingBug == nil {
		return 0
	}
	if r.FailingBug.Kind.Fatal() {
		return 3
	}
	if r.FailingBug.Kind == bugs.StepBoundExceeded {
		return 2
	}
	return 1
}

// Engine runs TestFuncs under a configured strategy.
type Engine struct {
	cfg      *config.RunConfig
	logger   *rtlog.Logger
	replay   *trace.File
	observer func(IterationReport)
}

// WithObserver registers a callback invoked synchronously after every
// completed iteration, before Run decides whether to continue. Used by
// internal/dashboard to stream progress over SSE without Run knowing
// anything about HTTP.
func (e *Engine) WithObserver(fn func(IterationReport)) *Engine {
	e.observer = fn
	return e
}

// New builds an Engine over cfg. A nil logger defaults to rtlog.Default.
func New(cfg *config.RunConfig, logger *rtlog.Logger) *Engine {
	if logger == nil {
		logger = rtlog.Default
	}
	return &Engine{cfg: cfg, logger: logger}
}

// WithReplay configures the engine to replay a single previously recorded
// trace instead of exploring, overriding cfg.Strategy/Iterations for the
// run.
func (e *Engine) WithReplay(f trace.File) *Engine {
	e.replay = &f
	return e
}

func (e *Engine) buildStrategy(iter int) strategy.Strategy {
	if e.replay != nil {
		return strategy.NewReplay(*e.replay, replaySourceIsFair(*e.replay))
	}
	seed := e.cfg.Seed + uint64(iter)
	switch e.cfg.Strategy {
	case config.StrategyProbabilistic:
		return strategy.NewProbabilistic(seed, e.cfg.ProbabilisticBias)
	case config.StrategyPriority:
		return strategy.NewPriority(seed, e.cfg.PriorityReshuffle)
	case config.StrategyDFS:
		return strategy.NewDFS(e.cfg.MaxDepth)
	case config.StrategyReplay:
		// cfg.Strategy == replay with no WithReplay call is a caller
		// configuration error, not a strategy choice the engine can make on
		// its own; cmd/coyotetest rejects this combination before Run is
		// ever called (--strategy replay requires --replay-file), so this
		// fallback only matters to a library caller that skipped validation.
		return strategy.NewRandom(seed)
	default:
		return strategy.NewRandom(seed)
	}
}

// replaySourceIsFair reports whether a trace's recorded strategy name names
// a fair strategy, so Replay preserves that fairness per spec.md: "a Replay
// is fair iff its recorded source was".
func replaySourceIsFair(f trace.File) bool {
	switch config.StrategyName(f.Header.Strategy) {
	case config.StrategyDFS:
		return false
	default:
		return true
	}
}

// Run executes fn across e.cfg.Iterations scheduled iterations (or exactly
// one, replaying, if WithReplay was called), stopping early if
// e.cfg.FailFast and a bug is found.
func (e *Engine) Run(fn TestFunc) Report {
	iterations := e.cfg.Iterations
	if e.replay != nil {
		iterations = 1
	}

	report := Report{Iterations: iterations}
	strat := e.buildStrategy(0)
	for i := 0; i < iterations; i++ {
		strat.PrepareForIteration(i)

		header := trace.Header{
			Version:   trace.Version,
			Strategy:  strat.Name(),
			Seed:      e.cfg.Seed + uint64(i),
			StepBound: e.cfg.MaxSteps,
		}
		sched := scheduler.New(strat, scheduler.Config{
			MaxSteps:          e.cfg.MaxSteps,
			LivenessThreshold: e.cfg.LivenessThreshold,
		}, header, e.logger)

		mEngine := monitor.NewEngine(e.cfg.LivenessThreshold, sched.ReportBug)
		sched.SetMonitorHooks(mEngine.Tick, nil)

		sys := actor.NewSystem(sched, e.logger)
		t := &T{sys: sys, monitors: mEngine, timers: timer.NewService(sys)}

		sched.RunGuarded(sys.Root(), func() { fn(t) })
		<-sched.Done()

		bug := sched.Bug()
		if bug == nil {
			if b := mEngine.FinalCheck(sched.Fair()); b != nil {
				sched.ReportFinal(b)
				bug = b
			}
		}

		report.Ran++
		rep := IterationReport{
			Index:   i,
			Outcome: sched.Outcome(),
			Bug:     bug,
			Steps:   sched.Steps(),
			Trace:   sched.Trace(),
		}
		report.Reports = append(report.Reports, rep)
		if e.observer != nil {
			e.observer(rep)
		}

		if bug != nil {
			report.BugsFound++
			if report.FailingBug == nil {
				report.FailingBug = bug
				report.FailingTrace = rep.Trace
				report.HasFailingTrace = true
			}
			if e.cfg.FailFast {
				break
			}
		}

		if !strat.ShouldContinue() {
			break
		}
	}
	return report
}

// Summary renders a one-line human-readable result, for CLI output.
func (r Report) Summary() string {
	if r.FailingBug == nil {
		return fmt.Sprintf("ran %d/%d iterations, no bugs found", r.Ran, r.Iterations)
	}
	return fmt.Sprintf("ran %d/%d iterations, found %d bug(s); first: %s", r.Ran, r.Iterations, r.BugsFound, r.FailingBug.Error())
}
