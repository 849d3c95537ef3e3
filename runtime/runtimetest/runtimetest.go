// Package runtimetest provides assertion helpers for building and driving
// actors, state machines, and monitors in package tests, generalizing
// HildaM-scaled-mcp's test/testutils and test/harness into a harness for
// runtime/actor and runtime/statemachine instead of an HTTP MCP client.
package runtimetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/scheduler"
	"github.com/microsoft/coyote-sub017/runtime/strategy"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
	"github.com/microsoft/coyote-sub017/runtime/trace"
)

// NewSystem builds a single-iteration ActorSystem over a Random strategy
// seeded with seed, for tests that drive actors directly without going
// through testengine.Run.
func NewSystem(t *testing.T, seed uint64) *actor.System {
	t.Helper()
	strat := strategy.NewRandom(seed)
	sched := scheduler.New(strat, scheduler.Config{MaxSteps: 10000, LivenessThreshold: 10000},
		trace.Header{Version: trace.Version, Strategy: strat.Name(), Seed: seed}, rtlog.Discard)
	return actor.NewSystem(sched, rtlog.Discard)
}

// RunOnce runs fn through testengine.Engine for a single deterministic
// iteration and returns its report; a bug found in it does not fail the
// test, so callers inspect the report's Bug themselves.
func RunOnce(t *testing.T, seed uint64, fn testengine.TestFunc) testengine.IterationReport {
	t.Helper()
	cfg := config.TestConfig()
	cfg.Iterations = 1
	cfg.Seed = seed
	report := testengine.New(cfg, rtlog.Discard).Run(fn)
	require.Len(t, report.Reports, 1)
	return report.Reports[0]
}

// RequireNoBug runs fn across cfg.Iterations iterations and fails the test
// with the first discovered bug's message, if any.
func RequireNoBug(t *testing.T, cfg *config.RunConfig, fn testengine.TestFunc) testengine.Report {
	t.Helper()
	report := testengine.New(cfg, rtlog.Discard).Run(fn)
	if report.FailingBug != nil {
		t.Fatalf("testengine found a bug: %s", report.FailingBug.Error())
	}
	return report
}

// RequireBug runs fn across cfg.Iterations iterations and fails the test
// unless at least one of them found a bug. It does not check the bug's
// kind; callers assert that on the returned Report.
func RequireBug(t *testing.T, cfg *config.RunConfig, fn testengine.TestFunc) testengine.Report {
	t.Helper()
	report := testengine.New(cfg, rtlog.Discard).Run(fn)
	require.NotNil(t, report.FailingBug, "expected testengine to find a bug")
	return report
}
