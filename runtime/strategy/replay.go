package strategy

import (
	"fmt"

	"github.com/microsoft/coyote-sub017/runtime/bugs"
	"github.com/microsoft/coyote-sub017/runtime/operation"
	"github.com/microsoft/coyote-sub017/runtime/trace"
)

// Replay reproduces a previously recorded trace exactly. A mismatch
// between the recorded operation id and the live enabled set at a given
// step is a replay-divergence configuration error, not a found bug.
type Replay struct {
	player   *trace.Player
	step     int
	fair     bool
	DivergedBug *bugs.Bug
}

// NewReplay builds a Replay strategy over a parsed trace file. fair should
// mirror whether the recorded source strategy was fair, per spec.md: a
// Replay is fair iff its recorded source was.
func NewReplay(f trace.File, fair bool) *Replay {
	return &Replay{player: trace.NewPlayer(f), fair: fair}
}

func (r *Replay) Name() string { return "replay" }

func (r *Replay) NextOperation(enabled []*operation.Operation, _ Metadata) *operation.Operation {
	rec, ok := r.player.Next()
	if !ok {
		// Recording ended; fall back to the first enabled operation so the
		// scheduler can still observe termination/deadlock deterministically
		// rather than panicking mid-replay.
		return enabled[0]
	}
	r.step++
	for _, op := range enabled {
		if op.ID.String() == rec.OpID {
			return op
		}
	}
	// Recorded operation id is not among the live enabled set: diverged.
	r.DivergedBug = bugs.New(bugs.ReplayDivergence, r.step,
		"replayed choice does not match live enabled set").WithOps(rec.OpID, describeIDs(enabled))
	return enabled[0]
}

func describeIDs(ops []*operation.Operation) string {
	s := ""
	for i, op := range ops {
		if i > 0 {
			s += ","
		}
		s += op.ID.String()
	}
	return fmt.Sprintf("[%s]", s)
}

func (r *Replay) NextBoolean(bound int) bool {
	rec, ok := r.player.Next()
	if !ok || rec.RandomBits == nil {
		return false
	}
	return *rec.RandomBits != 0
}

func (r *Replay) NextInteger(bound int) int {
	rec, ok := r.player.Next()
	if !ok || rec.RandomBits == nil {
		return 0
	}
	return int(*rec.RandomBits)
}

func (r *Replay) PrepareForIteration(int) {}

func (r *Replay) ShouldContinue() bool { return r.player.Len() > 0 && r.DivergedBug == nil }

func (r *Replay) Fair() bool { return r.fair }

// Diverged reports whether replay has hit a divergence, and the bug
// describing it.
func (r *Replay) Diverged() (*bugs.Bug, bool) {
	return r.DivergedBug, r.DivergedBug != nil
}
