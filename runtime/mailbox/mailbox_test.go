package mailbox_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/event"
	"github.com/microsoft/coyote-sub017/runtime/mailbox"
)

var pingTag = event.NewTypeTag("mailbox_test.Ping")

type ping struct {
	event.Base
	N int
}

func newPing(n int) ping { return ping{Base: event.NewBase(pingTag), N: n} }

func TestEnqueueDequeueIsFIFO(t *testing.T) {
	m := mailbox.New()
	require.Equal(t, mailbox.Accepted, m.Enqueue(event.Envelope{Event: newPing(1)}))
	require.Equal(t, mailbox.Accepted, m.Enqueue(event.Envelope{Event: newPing(2)}))
	require.Equal(t, 2, m.Len())

	first, status := m.Dequeue()
	require.Equal(t, mailbox.Ok, status)
	require.Equal(t, 1, first.Event.(ping).N)

	second, status := m.Dequeue()
	require.Equal(t, mailbox.Ok, status)
	require.Equal(t, 2, second.Event.(ping).N)

	_, status = m.Dequeue()
	require.Equal(t, mailbox.Empty, status)
}

func TestCloseRejectsFurtherSendsAsDeadLetters(t *testing.T) {
	m := mailbox.New()
	m.Close()

	require.Equal(t, mailbox.RejectedHalted, m.Enqueue(event.Envelope{Event: newPing(1)}))
	require.Equal(t, 1, m.DeadLetters())
	require.Equal(t, 0, m.Len())
}

func TestInstallReceiveMatchesQueuedEventImmediately(t *testing.T) {
	m := mailbox.New()
	m.Enqueue(event.Envelope{Event: newPing(1)})

	env, ok := m.InstallReceive(&mailbox.Await{Types: []event.TypeTag{pingTag}})
	require.True(t, ok)
	require.Equal(t, 1, env.Event.(ping).N)
	require.False(t, m.HasAwait())
	require.Equal(t, 0, m.Len(), "the matched envelope must not remain queued")
}

func TestInstallReceiveWaitsThenEnqueueWakesIt(t *testing.T) {
	m := mailbox.New()

	delivered := make(chan event.Envelope, 1)
	env, ok := m.InstallReceive(&mailbox.Await{
		Types:   []event.TypeTag{pingTag},
		Deliver: func(e event.Envelope) { delivered <- e },
	})
	require.False(t, ok)
	require.Equal(t, event.Envelope{}, env)
	require.True(t, m.HasAwait())

	status := m.Enqueue(event.Envelope{Event: newPing(7)})
	require.Equal(t, mailbox.AcceptedWakesReceive, status)
	require.False(t, m.HasAwait())

	select {
	case e := <-delivered:
		require.Equal(t, 7, e.Event.(ping).N)
	default:
		t.Fatal("expected Deliver to have been invoked synchronously")
	}
}

func TestEnqueueWithFailingPredicateInvokesFailed(t *testing.T) {
	m := mailbox.New()
	wantErr := errors.New("boom")

	failed := make(chan error, 1)
	_, ok := m.InstallReceive(&mailbox.Await{
		Types:     []event.TypeTag{pingTag},
		Predicate: func(event.Envelope) (bool, error) { return false, wantErr },
		Failed:    func(err error) { failed <- err },
	})
	require.False(t, ok)

	status := m.Enqueue(event.Envelope{Event: newPing(1)})
	require.Equal(t, mailbox.AcceptedWakesReceive, status)
	require.Equal(t, wantErr, <-failed)
}

func TestCancelReceiveClearsAwaitWithoutDelivering(t *testing.T) {
	m := mailbox.New()
	m.InstallReceive(&mailbox.Await{Types: []event.TypeTag{pingTag}})
	require.True(t, m.HasAwait())

	m.CancelReceive()
	require.False(t, m.HasAwait())

	require.Equal(t, mailbox.Accepted, m.Enqueue(event.Envelope{Event: newPing(1)}))
}

func TestDeferAndReclaimPreserveFIFOOrderAtTheFront(t *testing.T) {
	m := mailbox.New()
	env1 := event.Envelope{Event: newPing(1)}
	env2 := event.Envelope{Event: newPing(2)}
	m.Defer(env1)
	m.Defer(env2)

	m.Enqueue(event.Envelope{Event: newPing(3)})

	m.ReclaimDeferred(func(event.Envelope) bool { return true })
	require.Equal(t, 3, m.Len())

	first, _ := m.Dequeue()
	require.Equal(t, 1, first.Event.(ping).N)
	second, _ := m.Dequeue()
	require.Equal(t, 2, second.Event.(ping).N)
	third, _ := m.Dequeue()
	require.Equal(t, 3, third.Event.(ping).N)
}

func TestReclaimDeferredLeavesNonMatchingEventsDeferred(t *testing.T) {
	m := mailbox.New()
	m.Defer(event.Envelope{Event: newPing(1)})
	m.Defer(event.Envelope{Event: newPing(2)})

	m.ReclaimDeferred(func(e event.Envelope) bool { return e.Event.(ping).N == 2 })
	require.Equal(t, 1, m.Len())

	only, _ := m.Dequeue()
	require.Equal(t, 2, only.Event.(ping).N)
}

func TestPeekDoesNotRemove(t *testing.T) {
	m := mailbox.New()
	m.Enqueue(event.Envelope{Event: newPing(5)})

	env, ok := m.Peek()
	require.True(t, ok)
	require.Equal(t, 5, env.Event.(ping).N)
	require.Equal(t, 1, m.Len())
}
