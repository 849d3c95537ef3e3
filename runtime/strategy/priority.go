package strategy

import "github.com/microsoft/coyote-sub017/runtime/operation"

// Priority maintains an ordered preference list over operation ids and
// picks the highest-priority enabled operation on each step. Every k steps
// the priority list is reshuffled so the same operation cannot starve the
// rest forever; this keeps the strategy fair.
type Priority struct {
	seed       uint64
	reshuffleK int
	src        *source
	order      []operation.ID
	sinceShuf  int
}

// NewPriority builds a Priority strategy that re-randomizes its preference
// order every reshuffleK steps. reshuffleK <= 0 disables periodic
// reshuffling, and the strategy is then unfair.
func NewPriority(seed uint64, reshuffleK int) *Priority {
	return &Priority{seed: seed, reshuffleK: reshuffleK, src: newSource(seed)}
}

func (p *Priority) Name() string { return "priority" }

func (p *Priority) NextOperation(enabled []*operation.Operation, _ Metadata) *operation.Operation {
	p.ensureTracked(enabled)
	if p.reshuffleK > 0 && p.sinceShuf >= p.reshuffleK {
		p.shuffle()
	}
	p.sinceShuf++

	best := -1
	var chosen *operation.Operation
	for _, op := range enabled {
		rank := p.rankOf(op.ID)
		if best == -1 || rank < best {
			best = rank
			chosen = op
		}
	}
	return chosen
}

// ensureTracked appends newly-seen operation ids to the order list so
// freshly-spawned operations get a priority slot without disturbing the
// relative order of ones already tracked.
func (p *Priority) ensureTracked(enabled []*operation.Operation) {
	seen := make(map[operation.ID]bool, len(p.order))
	for _, id := range p.order {
		seen[id] = true
	}
	for _, op := range enabled {
		if !seen[op.ID] {
			p.order = append(p.order, op.ID)
			seen[op.ID] = true
		}
	}
}

func (p *Priority) rankOf(id operation.ID) int {
	for i, o := range p.order {
		if o == id {
			return i
		}
	}
	return len(p.order)
}

func (p *Priority) shuffle() {
	p.sinceShuf = 0
	for i := len(p.order) - 1; i > 0; i-- {
		j := p.src.intn(i + 1)
		p.order[i], p.order[j] = p.order[j], p.order[i]
	}
}

func (p *Priority) NextBoolean(bound int) bool {
	if bound <= 0 {
		return p.src.intn(2) == 0
	}
	return p.src.intn(bound) == 0
}

func (p *Priority) NextInteger(bound int) int { return p.src.intn(bound) }

func (p *Priority) PrepareForIteration(iterIndex int) {
	p.src = newSource(p.seed + uint64(iterIndex))
	p.order = nil
	p.sinceShuf = 0
}

func (p *Priority) ShouldContinue() bool { return true }

func (p *Priority) Fair() bool { return p.reshuffleK > 0 }
