package pingpong_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/actor"
	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/examples/pingpong"
	"github.com/microsoft/coyote-sub017/runtime/runtimetest"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
)

func TestPingPongCompletesUnderAnySchedule(t *testing.T) {
	cfg := config.TestConfig()
	cfg.Iterations = 50

	var starter, responder *pingpong.Player

	report := runtimetest.RequireNoBug(t, cfg, func(tt *testengine.T) {
		starter = pingpong.NewStarter()
		responder = pingpong.NewResponder()

		responderID := tt.CreateActor("responder", func() actor.Actor { return responder })
		starterID := tt.CreateActor("starter", func() actor.Actor { return starter })

		tt.Send(responderID, pingpong.NewWire(starterID))
		tt.Send(starterID, pingpong.NewWire(responderID))
	})

	require.Equal(t, cfg.Iterations, report.Ran)
	require.Equal(t, pingpong.Rounds, starter.Seen())
	require.Equal(t, pingpong.Rounds, responder.Seen())
}

func TestPingPongSingleIteration(t *testing.T) {
	rep := runtimetest.RunOnce(t, 42, func(tt *testengine.T) {
		starter := pingpong.NewStarter()
		responder := pingpong.NewResponder()

		responderID := tt.CreateActor("responder", func() actor.Actor { return responder })
		starterID := tt.CreateActor("starter", func() actor.Actor { return starter })

		tt.Send(responderID, pingpong.NewWire(starterID))
		tt.Send(starterID, pingpong.NewWire(responderID))
	})

	require.Nil(t, rep.Bug)
}
