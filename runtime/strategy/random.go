package strategy

import "github.com/microsoft/coyote-sub017/runtime/operation"

// Random picks uniformly from the enabled set on every step. It is fair:
// over enough iterations every continuously-enabled operation is chosen.
type Random struct {
	seed uint64
	src  *source
}

// NewRandom builds a Random strategy seeded with seed.
func NewRandom(seed uint64) *Random {
	return &Random{seed: seed, src: newSource(seed)}
}

func (r *Random) Name() string { return "random" }

func (r *Random) NextOperation(enabled []*operation.Operation, _ Metadata) *operation.Operation {
	return enabled[r.src.intn(len(enabled))]
}

func (r *Random) NextBoolean(bound int) bool {
	if bound <= 0 {
		return r.src.intn(2) == 0
	}
	return r.src.intn(bound) == 0
}

func (r *Random) NextInteger(bound int) int { return r.src.intn(bound) }

func (r *Random) PrepareForIteration(iterIndex int) {
	r.src = newSource(r.seed + uint64(iterIndex))
}

func (r *Random) ShouldContinue() bool { return true }

func (r *Random) Fair() bool { return true }
