package prodrt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	goakt "github.com/tochemey/goakt/v3/actor"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/prodrt"
)

var greetTag = event.NewTypeTag("prodrt_test.Greet")

type greet struct {
	event.Base
	Name string
}

func newGreet(name string) *greet { return &greet{Base: event.NewBase(greetTag), Name: name} }

type greeter struct {
	received chan string
}

var _ prodrt.Actor = (*greeter)(nil)

func (g *greeter) PreStart(ctx *prodrt.Context) error { return nil }

func (g *greeter) Receive(ctx *prodrt.Context) {
	msg, ok := ctx.Message().(*greet)
	if !ok {
		return
	}
	g.received <- msg.Name
}

func (g *greeter) PostStop(ctx *prodrt.Context) error { return nil }

func TestSystemDeliversEncodedEventsToRealGoaktActors(t *testing.T) {
	ctx := t.Context()
	registry := prodrt.NewRegistry()
	registry.Register(greetTag, func() event.Event { return &greet{} })

	sys, err := prodrt.New(ctx, "prodrt-test-system", registry, rtlog.Discard, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Stop(ctx) })

	g := &greeter{received: make(chan string, 1)}
	pid, err := sys.Spawn(ctx, "greeter", g)
	require.NoError(t, err)

	wire, err := prodrt.Encode(newGreet("ada"))
	require.NoError(t, err)

	err = goakt.Tell(ctx, pid, wire)
	require.NoError(t, err)

	select {
	case name := <-g.received:
		require.Equal(t, "ada", name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for greet to be delivered")
	}
}

func TestWatchObservesTermination(t *testing.T) {
	ctx := t.Context()
	registry := prodrt.NewRegistry()

	sys, err := prodrt.New(ctx, "prodrt-watch-system", registry, rtlog.Discard, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Stop(ctx) })

	g := &greeter{received: make(chan string, 1)}
	pid, err := sys.Spawn(ctx, "watched-greeter", g)
	require.NoError(t, err)

	notifications, err := sys.Watch(ctx, pid)
	require.NoError(t, err)

	require.NoError(t, pid.Shutdown(ctx))

	select {
	case term := <-notifications:
		require.Equal(t, pid.ID(), term.GetActorId())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for termination notification")
	}
}
