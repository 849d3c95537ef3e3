package operation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/microsoft/coyote-sub017/runtime/operation"
)

func TestRunnableReflectsStatusAndDependency(t *testing.T) {
	op := operation.New(operation.ActorOperation, "actor-1", "worker")
	require.True(t, op.Runnable(), "Created operations are runnable")

	op.Status = operation.Completed
	require.False(t, op.Runnable())

	op.Status = operation.Paused
	op.WaitingOn = operation.Func{Desc: "never", Fn: func() bool { return false }}
	require.False(t, op.Runnable())

	op.WaitingOn = operation.Func{Desc: "always", Fn: func() bool { return true }}
	require.True(t, op.Runnable())
}

func TestSignalAwaitDeliversExactlyOneTurn(t *testing.T) {
	op := operation.New(operation.UserOperation, "", "task")

	done := make(chan struct{})
	go func() {
		op.Await()
		close(done)
	}()

	op.Signal()
	<-done
}

func TestSignalDoesNotBlockWithoutAWaiter(t *testing.T) {
	op := operation.New(operation.UserOperation, "", "task")
	op.Signal()
	op.Signal()
}

func TestMarkDoneIsIdempotent(t *testing.T) {
	op := operation.New(operation.UserOperation, "", "task")
	op.MarkDone()
	op.MarkDone()

	select {
	case <-op.Done():
	default:
		t.Fatal("Done channel should be closed after MarkDone")
	}
}

func TestNextIDIsUniqueAndMonotonic(t *testing.T) {
	a := operation.NextID()
	b := operation.NextID()
	require.NotEqual(t, a, b)
	require.Greater(t, uint64(b), uint64(a))
}

func TestStatusAndKindStringers(t *testing.T) {
	require.Equal(t, "created", operation.Created.String())
	require.Equal(t, "enabled", operation.Enabled.String())
	require.Equal(t, "paused", operation.Paused.String())
	require.Equal(t, "completed", operation.Completed.String())
	require.Contains(t, operation.Status(99).String(), "operation.Status")

	require.Equal(t, "actor", operation.ActorOperation.String())
	require.Equal(t, "user", operation.UserOperation.String())
	require.Equal(t, "monitor", operation.MonitorOperation.String())
	require.Equal(t, "timer", operation.TimerOperation.String())
	require.Contains(t, operation.Kind(99).String(), "operation.Kind")
}

func TestOperationStringIncludesIdentifyingFields(t *testing.T) {
	op := operation.New(operation.ActorOperation, "actor-7", "mailbox-loop")
	s := op.String()
	require.Contains(t, s, "mailbox-loop")
	require.Contains(t, s, "created")
}
