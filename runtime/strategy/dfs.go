package strategy

import "github.com/microsoft/coyote-sub017/runtime/operation"

// DFS deterministically enumerates the choice tree in depth-first order up
// to a bounded depth, backtracking to the next untried branch once an
// iteration completes. It is unfair: a DFS exploration can run the same
// operation to completion before ever scheduling a sibling, so liveness
// bugs must not be reported under it.
type DFS struct {
	maxDepth int
	// path holds, for each depth visited in the current iteration, the
	// index into the enabled set that was chosen.
	path []int
	// frontier records, for each depth, how many branches were available
	// the last time it was visited, so Prepare can compute the next
	// untried combination lexicographically.
	frontier []int
	exhausted bool
	depth     int
}

// NewDFS builds a DFS strategy bounded to maxDepth scheduling decisions per
// iteration.
func NewDFS(maxDepth int) *DFS {
	return &DFS{maxDepth: maxDepth}
}

func (d *DFS) Name() string { return "dfs" }

func (d *DFS) NextOperation(enabled []*operation.Operation, _ Metadata) *operation.Operation {
	idx := 0
	if d.depth < len(d.path) {
		idx = d.path[d.depth]
		if idx >= len(enabled) {
			idx = len(enabled) - 1
		}
	}
	if d.depth == len(d.path) {
		d.path = append(d.path, idx)
	} else {
		d.path[d.depth] = idx
	}
	if d.depth == len(d.frontier) {
		d.frontier = append(d.frontier, len(enabled))
	} else {
		d.frontier[d.depth] = len(enabled)
	}
	d.depth++
	if d.depth >= d.maxDepth {
		// Stop growing the path; further steps in this iteration replay
		// the last branch chosen (the bound exists precisely to keep the
		// tree finite).
		d.depth = d.maxDepth
	}
	return enabled[idx]
}

// PrepareForIteration advances path to the next untried combination in
// lexicographic depth-first order, like incrementing an odometer from the
// rightmost (deepest) digit.
func (d *DFS) PrepareForIteration(iterIndex int) {
	d.depth = 0
	if iterIndex == 0 {
		d.path = nil
		d.frontier = nil
		d.exhausted = false
		return
	}
	for i := len(d.path) - 1; i >= 0; i-- {
		d.path[i]++
		if d.path[i] < d.frontier[i] {
			d.path = d.path[:i+1]
			d.frontier = d.frontier[:i+1]
			return
		}
		d.path[i] = 0
	}
	// Every branch at every depth has been exhausted.
	d.exhausted = true
	d.path = nil
	d.frontier = nil
}

func (d *DFS) ShouldContinue() bool { return !d.exhausted }

func (d *DFS) Fair() bool { return false }

// NextBoolean and NextInteger are deterministic, zero-biased choices under
// DFS: they always return the smallest value (false, 0). The scheduler
// treats each call as an ordinary step, so the interleavings around it are
// enumerated, but the other values of a controlled boolean or integer are
// never explored.
func (d *DFS) NextBoolean(bound int) bool { return false }

func (d *DFS) NextInteger(bound int) int { return 0 }
