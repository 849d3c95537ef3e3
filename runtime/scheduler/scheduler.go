// Package scheduler implements the cooperative single-stepper that owns
// every operation handoff in test mode: at any instant exactly one
// Operation runs, and only the Scheduler's wake primitives may resume a
// paused one. See spec.md §4.1 and §5 for the contract this package
// realizes.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/operation"
	"github.com/microsoft/coyote-sub017/runtime/strategy"
	"github.com/microsoft/coyote-sub017/runtime/trace"
)

// Config bounds one iteration's exploration.
type Config struct {
	MaxSteps          int
	MaxFairSteps      int
	LivenessThreshold int
}

// Hooks lets collaborators (the test engine, the dashboard) observe
// scheduling decisions without coupling to the scheduler's internals.
type Hooks struct {
	OnStep       func(step int, chosen *operation.Operation)
	OnQuiescence func()
}

// Outcome is the terminal result of one iteration.
type Outcome int

const (
	// Running means the iteration has not yet concluded.
	Running Outcome = iota
	// Succeeded means every operation completed with no bug reported.
	Succeeded
	// BugFound means Bug() names a discovered defect.
	BugFound
	// Inconclusive means the step bound was exceeded with no bug found.
	Inconclusive
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case BugFound:
		return "bug_found"
	case Inconclusive:
		return "inconclusive"
	default:
		return fmt.Sprintf("scheduler.Outcome(%d)", int(o))
	}
}

// cancelSignal unwinds an operation's goroutine once the iteration has
// been frozen, per spec.md §7 "Propagation": cancellation must be fatal
// and unwind, releasing scoped resources via each operation's normal defer
// chain.
type cancelSignal struct{}

// Scheduler holds every Operation for the current iteration and drives
// handoffs between them via a pluggable Strategy.
type Scheduler struct {
	cfg      Config
	strategy strategy.Strategy
	logger   *rtlog.Logger
	hooks    Hooks

	mu         sync.Mutex
	ops        map[operation.ID]*operation.Operation
	order      []operation.ID
	active     *operation.Operation
	lastChosen *operation.Operation

	rec       *trace.Recorder
	steps     int
	fairSteps int
	outcome   Outcome
	bug       *bugs.Bug
	fair      bool
	canceled  bool

	done       chan struct{}
	doneClosed bool

	monitorTick    func(step int, fair bool) *bugs.Bug
	quiescenceHook func()
}

// New constructs a Scheduler for one iteration. header seeds the trace
// recorder so a failing iteration's trace is immediately replayable.
func New(strat strategy.Strategy, cfg Config, header trace.Header, logger *rtlog.Logger) *Scheduler {
	if logger == nil {
		logger = rtlog.Default
	}
	return &Scheduler{
		cfg:      cfg,
		strategy: strat,
		logger:   logger,
		ops:      make(map[operation.ID]*operation.Operation),
		rec:      trace.NewRecorder(header),
		fair:     strat.Fair(),
		done:     make(chan struct{}),
	}
}

// Done returns a channel closed once the iteration has concluded, by any
// means: natural termination, deadlock, a reported bug, or the step bound.
// The test engine blocks on this rather than on any single operation, since
// the operation that detects conclusion is not necessarily the root.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) closeDoneLocked() {
	if !s.doneClosed {
		s.doneClosed = true
		close(s.done)
	}
}

// SetStrategy swaps the strategy used for subsequent decisions. Exposed for
// completeness with spec.md §4.1's contract; typical callers set the
// strategy once at construction.
func (s *Scheduler) SetStrategy(strat strategy.Strategy) {
	s.mu.Lock()
	s.strategy = strat
	s.fair = strat.Fair()
	s.mu.Unlock()
}

// SetHooks installs observer callbacks.
func (s *Scheduler) SetHooks(h Hooks) { s.hooks = h }

// SetMonitorHooks wires the monitor engine's per-step temperature tick and
// quiescence assertion point into the scheduler loop. tick is called with
// s.mu already held, so it must not call back into the Scheduler; it
// reports a crossed liveness threshold by return value instead.
func (s *Scheduler) SetMonitorHooks(tick func(step int, fair bool) *bugs.Bug, quiescence func()) {
	s.monitorTick = tick
	s.quiescenceHook = quiescence
}

// Begin bootstraps the operation representing the calling goroutine itself
// (the test driver). Unlike RegisterOperation, Begin does not spawn a new
// goroutine: the caller *is* the operation, so it is installed as the
// active operation directly.
func (s *Scheduler) Begin(name string) *operation.Operation {
	op := operation.New(operation.UserOperation, "", name)
	s.mu.Lock()
	s.ops[op.ID] = op
	s.order = append(s.order, op.ID)
	s.active = op
	s.mu.Unlock()
	return op
}

// RegisterOperation creates a new Operation of the given kind and starts
// its backing goroutine, which blocks until the scheduler signals its
// first turn. fn is the operation's body (an actor's dispatch loop, a user
// task, ...); it receives no context because every runtime call it needs
// to make takes the returned *operation.Operation explicitly, per the
// explicit-Context re-architecture in spec.md §9.
func (s *Scheduler) RegisterOperation(kind operation.Kind, owner, name string, fn func()) *operation.Operation {
	op := operation.New(kind, owner, name)
	s.mu.Lock()
	s.ops[op.ID] = op
	s.order = append(s.order, op.ID)
	s.mu.Unlock()

	go func() {
		op.Await()
		if s.isCanceled() {
			return
		}
		s.RunGuarded(op, fn)
	}()
	return op
}

// RunGuarded executes fn as op's body with the same panic-recovery and
// completion handling RegisterOperation gives its spawned goroutines. Used
// directly for the root operation, whose body runs on the caller's own
// goroutine rather than one the scheduler spawns.
func (s *Scheduler) RunGuarded(op *operation.Operation, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(cancelSignal); ok {
				return
			}
			s.mu.Lock()
			s.reportLocked(bugs.New(bugs.AssertionFailed, s.steps, "panic in operation %s: %v", op.ID, r))
			s.cancelAllLocked()
			s.mu.Unlock()
		}
	}()
	fn()
	s.CompleteOperation(op)
}

// StartOperation performs the CreateActor-after-spawn scheduling point:
// the caller just registered a new operation and now cedes its turn so
// the new operation becomes a candidate for the strategy to pick.
func (s *Scheduler) StartOperation(current *operation.Operation) {
	s.yield(current, nil, "start")
}

// ScheduleNext is the general-purpose yield: every controlled operation
// calls it at each scheduling point enumerated in spec.md §5.
func (s *Scheduler) ScheduleNext(current *operation.Operation) {
	s.yield(current, nil, "yield")
}

// WaitFor pauses current until dep is satisfied, e.g. a receive-await with
// no matching event yet, or a timer not due.
func (s *Scheduler) WaitFor(current *operation.Operation, dep operation.Dependency) {
	s.yield(current, dep, "wait:"+dep.Describe())
}

// CompleteOperation marks current Completed and hands off to whichever
// operation the strategy picks next, without current ever regaining the
// token. Safe to call exactly once per operation.
func (s *Scheduler) CompleteOperation(current *operation.Operation) {
	s.mu.Lock()
	current.Status = operation.Completed
	current.MarkDone()

	next, outcome := s.pickNextLocked(current)
	switch outcome {
	case decisionTerminate:
		s.finishLocked(Succeeded)
		s.mu.Unlock()
		return
	case decisionDeadlock:
		s.mu.Unlock()
		return
	case decisionAbort:
		s.mu.Unlock()
		return
	}
	next.Status = operation.Enabled
	next.WaitingOn = nil
	s.active = next
	s.mu.Unlock()
	next.Signal()
}

// NotifyAssertionFailure reports a user or monitor assertion failure and
// freezes the iteration. kind lets monitor safety violations reuse this
// single path while still being classified distinctly in the report.
func (s *Scheduler) NotifyAssertionFailure(kind bugs.Kind, current *operation.Operation, format string, args ...any) {
	s.mu.Lock()
	s.reportLocked(bugs.New(kind, s.steps, format, args...).WithOps(opID(current), ""))
	s.cancelAllLocked()
	s.mu.Unlock()
	panic(cancelSignal{})
}

// ReportBug freezes the iteration with an already-constructed bug, then
// unwinds the calling operation. Used by monitor.Engine's onBug callback
// from Notify, which runs inline in actor/state-machine code without the
// scheduler's lock held.
func (s *Scheduler) ReportBug(b *bugs.Bug) {
	s.mu.Lock()
	s.reportLocked(b)
	s.cancelAllLocked()
	s.mu.Unlock()
	panic(cancelSignal{})
}

// ReportFinal records a bug discovered after the iteration has already
// concluded (the monitor engine's end-of-iteration hot-state check), with
// no operation left to unwind.
func (s *Scheduler) ReportFinal(b *bugs.Bug) {
	s.mu.Lock()
	s.reportLocked(b)
	s.mu.Unlock()
}

// ReportUncontrolled freezes the iteration as an uncontrolled-invocation
// configuration error rather than a discovered bug, per spec.md §5.
func (s *Scheduler) ReportUncontrolled(offender string) {
	s.mu.Lock()
	s.reportLocked(bugs.New(bugs.UncontrolledInvocation, s.steps, "uncontrolled invocation via %s", offender))
	s.cancelAllLocked()
	s.mu.Unlock()
}

// RandomBoolean resolves a controlled random boolean choice through the
// active strategy and treats the choice itself as a scheduling point, so
// the exploration can interleave it with any other enabled operation.
func (s *Scheduler) RandomBoolean(current *operation.Operation, bound int) bool {
	s.mu.Lock()
	if current != s.active {
		s.mu.Unlock()
		s.ReportUncontrolled(fmt.Sprintf("operation %s called RandomBoolean without holding the turn", current.ID))
		panic(cancelSignal{})
	}
	v := s.strategy.NextBoolean(bound)
	var bits int64
	if v {
		bits = 1
	}
	s.rec.RecordRandom(s.steps, current.ID.String(), bits)
	s.mu.Unlock()
	s.yield(current, nil, "random-boolean")
	return v
}

// RandomInteger resolves a controlled random integer choice in [0, bound),
// with the same scheduling-point treatment as RandomBoolean.
func (s *Scheduler) RandomInteger(current *operation.Operation, bound int) int {
	s.mu.Lock()
	if current != s.active {
		s.mu.Unlock()
		s.ReportUncontrolled(fmt.Sprintf("operation %s called RandomInteger without holding the turn", current.ID))
		panic(cancelSignal{})
	}
	v := s.strategy.NextInteger(bound)
	s.rec.RecordRandom(s.steps, current.ID.String(), int64(v))
	s.mu.Unlock()
	s.yield(current, nil, "random-integer")
	return v
}

type decision int

const (
	decisionPicked decision = iota
	decisionTerminate
	decisionDeadlock
	decisionAbort
)

// yield is the shared implementation behind ScheduleNext/WaitFor/
// StartOperation: the five-step algorithm of spec.md §4.1.
func (s *Scheduler) yield(current *operation.Operation, dep operation.Dependency, label string) {
	s.mu.Lock()
	if current != s.active {
		s.mu.Unlock()
		s.ReportUncontrolled(fmt.Sprintf("operation %s called %s without holding the turn", current.ID, label))
		panic(cancelSignal{})
	}
	current.Status = operation.Paused
	current.WaitingOn = dep

	next, outcome := s.pickNextLocked(current)
	switch outcome {
	case decisionTerminate:
		s.finishLocked(Succeeded)
		s.mu.Unlock()
		return
	case decisionDeadlock, decisionAbort:
		s.mu.Unlock()
		panic(cancelSignal{})
	}

	next.Status = operation.Enabled
	next.WaitingOn = nil
	s.active = next
	sameOp := next == current
	s.mu.Unlock()

	if sameOp {
		return
	}
	next.Signal()
	current.Await()

	if s.isCanceled() {
		panic(cancelSignal{})
	}
}

// pickNextLocked computes R, checks deadlock/termination/step-bound, asks
// the strategy, and records the choice. Must be called with s.mu held; it
// does not mutate the chosen operation's Status (callers do, after seeing
// decisionPicked is implied by a non-nil operation).
func (s *Scheduler) pickNextLocked(excludeFromCompletionCheck *operation.Operation) (*operation.Operation, decision) {
	enabled := s.enabledLocked()
	if len(enabled) == 0 {
		if s.allCompletedLocked() {
			return nil, decisionTerminate
		}
		s.reportLocked(bugs.New(bugs.Deadlock, s.steps,
			"no operation is enabled; %d operation(s) still pending", s.pendingCountLocked()))
		s.cancelAllLocked()
		return nil, decisionDeadlock
	}
	if s.cfg.MaxSteps > 0 && s.steps >= s.cfg.MaxSteps {
		s.outcome = Inconclusive
		s.bug = bugs.New(bugs.StepBoundExceeded, s.steps, "step bound %d reached", s.cfg.MaxSteps)
		s.cancelAllLocked()
		return nil, decisionAbort
	}

	md := strategy.Metadata{Step: s.steps, LastChosen: s.lastChosen}
	next := s.strategy.NextOperation(enabled, md)
	if rs, ok := s.strategy.(*strategy.Replay); ok {
		if bug, diverged := rs.Diverged(); diverged {
			s.reportLocked(bug)
			s.cancelAllLocked()
			return nil, decisionAbort
		}
	}
	s.rec.RecordChoice(s.steps, next.ID.String(), next.Name)
	s.steps++
	if s.fair {
		s.fairSteps++
	}
	s.lastChosen = next
	if s.monitorTick != nil {
		if b := s.monitorTick(s.steps, s.fair); b != nil {
			s.reportLocked(b)
			s.cancelAllLocked()
			return nil, decisionAbort
		}
	}
	if s.hooks.OnStep != nil {
		s.hooks.OnStep(s.steps, next)
	}
	return next, decisionPicked
}

func (s *Scheduler) enabledLocked() []*operation.Operation {
	var r []*operation.Operation
	for _, id := range s.order {
		op := s.ops[id]
		if op.Runnable() {
			r = append(r, op)
		}
	}
	if len(r) == 0 && s.quiescenceHook != nil {
		s.quiescenceHook()
	}
	return r
}

func (s *Scheduler) allCompletedLocked() bool {
	for _, op := range s.ops {
		if op.Status != operation.Completed {
			return false
		}
	}
	return true
}

func (s *Scheduler) pendingCountLocked() int {
	n := 0
	for _, op := range s.ops {
		if op.Status != operation.Completed {
			n++
		}
	}
	return n
}

func (s *Scheduler) reportLocked(b *bugs.Bug) {
	if s.bug != nil {
		return // first bug wins; the iteration is already freezing.
	}
	s.bug = b
	s.outcome = BugFound
	s.logger.Error("bug found", "kind", b.Kind.String(), "message", b.Message, "step", b.Step)
}

func (s *Scheduler) cancelAllLocked() {
	s.canceled = true
	for _, op := range s.ops {
		if op.Status != operation.Completed {
			op.Status = operation.Completed
			op.Canceled = true
			op.MarkDone()
			op.Signal()
		}
	}
	s.closeDoneLocked()
}

func (s *Scheduler) finishLocked(outcome Outcome) {
	if s.outcome == Running {
		s.outcome = outcome
	}
	s.closeDoneLocked()
}

func (s *Scheduler) isCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Outcome reports the iteration's terminal state. Only meaningful once
// Wait has returned.
func (s *Scheduler) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Bug returns the discovered bug, or nil if the iteration has not (yet)
// found one.
func (s *Scheduler) Bug() *bugs.Bug {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bug
}

// Steps reports the number of scheduling decisions made so far.
func (s *Scheduler) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// FairSteps reports the number of scheduling decisions made while the
// active strategy is fair. Every decision counts as one step, whatever
// caused it; completed handler invocations (push/pop transitions included)
// are not counted on their own. The liveness temperature is advanced by the
// monitor hook on each step, not read from this count.
func (s *Scheduler) FairSteps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fairSteps
}

// Fair reports whether the active strategy produces fair schedules.
func (s *Scheduler) Fair() bool { return s.fair }

// Trace snapshots the recorded choice sequence made so far, for a failing
// iteration's reproducible bug report.
func (s *Scheduler) Trace() trace.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.File()
}

// Wait completes root and blocks until the whole iteration concludes,
// regardless of which operation's goroutine detects it. Root operations
// should call this instead of CompleteOperation directly.
func (s *Scheduler) Wait(root *operation.Operation) {
	s.CompleteOperation(root)
	<-s.Done()
}

func opID(op *operation.Operation) string {
	if op == nil {
		return ""
	}
	return op.ID.String()
}
