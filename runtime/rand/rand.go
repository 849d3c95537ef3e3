// Package rand exposes controlled nondeterminism to actor and state-machine
// code: Boolean/Integer calls that, under a scheduler, resolve through the
// active Strategy instead of a real entropy source, so the same program
// decision becomes part of the explored state space.
package rand

import (
	"github.com/microsoft/coyote-sub017/runtime/operation"
	"github.com/microsoft/coyote-sub017/runtime/scheduler"
)

// Boolean returns a controlled random boolean, uniformly distributed.
func Boolean(sched *scheduler.Scheduler, op *operation.Operation) bool {
	return sched.RandomBoolean(op, 0)
}

// BiasedBoolean returns a controlled random boolean, true with probability
// 1/bound.
func BiasedBoolean(sched *scheduler.Scheduler, op *operation.Operation, bound int) bool {
	return sched.RandomBoolean(op, bound)
}

// Integer returns a controlled random integer in [0, bound).
func Integer(sched *scheduler.Scheduler, op *operation.Operation, bound int) int {
	return sched.RandomInteger(op, bound)
}
