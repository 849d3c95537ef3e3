// Package bugs centralizes the error taxonomy a test iteration can report,
// and the single freeze-and-report path the scheduler drives all of them
// through.
package bugs

import "fmt"

// Kind classifies a reported bug or inconclusive outcome.
type Kind int

const (
	// AssertionFailed is a user assert() call that evaluated false.
	AssertionFailed Kind = iota
	// SafetyViolation is a monitor handler that asserted false.
	SafetyViolation
	// LivenessViolation is a hot-state temperature threshold crossed under
	// a fair strategy, or an iteration that ended with a monitor hot.
	LivenessViolation
	// Deadlock is an empty enabled-set with operations that are neither
	// completed nor satisfiable by any pending send or timer.
	Deadlock
	// UnhandledEvent is an event with no action/goto/push/wildcard binding
	// and no user override to drop it.
	UnhandledEvent
	// DuplicateTransition is more than one transition request raised by a
	// single handler invocation.
	DuplicateTransition
	// UncontrolledInvocation is a call into the runtime from an unrewritten
	// concurrency primitive (bare goroutine, unmanaged timer).
	UncontrolledInvocation
	// ReplayDivergence is a recorded choice that does not match the live
	// enabled set during replay.
	ReplayDivergence
	// StepBoundExceeded ends the iteration inconclusively, not as a bug.
	StepBoundExceeded
)

// String names the Kind for diagnostics and reports.
func (k Kind) String() string {
	switch k {
	case AssertionFailed:
		return "assertion-failed"
	case SafetyViolation:
		return "safety-violation"
	case LivenessViolation:
		return "liveness-violation"
	case Deadlock:
		return "deadlock"
	case UnhandledEvent:
		return "unhandled-event"
	case DuplicateTransition:
		return "duplicate-transition"
	case UncontrolledInvocation:
		return "uncontrolled-invocation"
	case ReplayDivergence:
		return "replay-divergence"
	case StepBoundExceeded:
		return "step-bound-exceeded"
	default:
		return fmt.Sprintf("bugs.Kind(%d)", int(k))
	}
}

// Fatal reports whether a Kind is a configuration error that should abort
// the whole run (not just the iteration as a found bug): uncontrolled
// concurrency and replay divergence are iteration-fatal but are not counted
// as discovered program bugs.
func (k Kind) Fatal() bool {
	return k == UncontrolledInvocation || k == ReplayDivergence
}

// Bug is a single reported defect, carrying enough context to reproduce it.
type Bug struct {
	Kind    Kind
	Message string
	Step    int
	// OpID/Op2ID name the operations involved, when the bug concerns a pair
	// (e.g. ReplayDivergence: recorded vs. live operation).
	OpID  string
	Op2ID string
}

func (b *Bug) Error() string {
	if b.Op2ID != "" {
		return fmt.Sprintf("%s at step %d: %s (recorded=%s live=%s)", b.Kind, b.Step, b.Message, b.OpID, b.Op2ID)
	}
	if b.OpID != "" {
		return fmt.Sprintf("%s at step %d: %s (op=%s)", b.Kind, b.Step, b.Message, b.OpID)
	}
	return fmt.Sprintf("%s at step %d: %s", b.Kind, b.Step, b.Message)
}

// New constructs a Bug.
func New(kind Kind, step int, format string, args ...any) *Bug {
	return &Bug{Kind: kind, Step: step, Message: fmt.Sprintf(format, args...)}
}

// WithOps attaches the operation id(s) implicated in the bug.
func (b *Bug) WithOps(opID, op2ID string) *Bug {
	b.OpID = opID
	b.Op2ID = op2ID
	return b
}
