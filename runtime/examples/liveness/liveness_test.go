package liveness_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/examples/liveness"
	"github.com/microsoft/coyote-sub017/runtime/runtimetest"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

func TestLooperThatNeverReadiesViolatesLiveness(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Iterations = 1
	cfg.LivenessThreshold = 25
	cfg.MaxSteps = 5000

	report := runtimetest.RequireBug(t, cfg, func(tt *testengine.T) {
		tt.RegisterMonitor(liveness.Def())
		tt.CreateActor("looper", func() actor.Actor { return liveness.NewLooper(tt, 0) })
	})

	require.Equal(t, bugs.LivenessViolation, report.FailingBug.Kind)
}

func TestLooperThatReadiesStaysLive(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Iterations = 5
	cfg.LivenessThreshold = 25
	cfg.MaxSteps = 5000

	runtimetest.RequireNoBug(t, cfg, func(tt *testengine.T) {
		tt.RegisterMonitor(liveness.Def())
		tt.CreateActor("looper", func() actor.Actor { return liveness.NewLooper(tt, 3) })
	})
}
