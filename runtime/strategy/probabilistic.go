package strategy

import "github.com/microsoft/coyote-sub017/runtime/operation"

// Probabilistic biases toward re-running the most-recently-chosen operation
// with probability P, falling back to a uniform pick from the remaining
// enabled operations otherwise. Fair, since every operation is eventually
// picked by the uniform fallback.
type Probabilistic struct {
	seed uint64
	p    float64
	src  *source
}

// NewProbabilistic builds a Probabilistic strategy with bias p in [0, 1].
func NewProbabilistic(seed uint64, p float64) *Probabilistic {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &Probabilistic{seed: seed, p: p, src: newSource(seed)}
}

func (s *Probabilistic) Name() string { return "probabilistic" }

func (s *Probabilistic) NextOperation(enabled []*operation.Operation, md Metadata) *operation.Operation {
	if md.LastChosen != nil && s.biasedHit() {
		for _, op := range enabled {
			if op.ID == md.LastChosen.ID {
				return op
			}
		}
	}
	return enabled[s.src.intn(len(enabled))]
}

// biasedHit returns true with probability p, using a 10000-way integer roll
// so the bias is exact regardless of float rounding.
func (s *Probabilistic) biasedHit() bool {
	const resolution = 10000
	return s.src.intn(resolution) < int(s.p*resolution)
}

func (s *Probabilistic) NextBoolean(bound int) bool {
	if bound <= 0 {
		return s.src.intn(2) == 0
	}
	return s.src.intn(bound) == 0
}

func (s *Probabilistic) NextInteger(bound int) int { return s.src.intn(bound) }

func (s *Probabilistic) PrepareForIteration(iterIndex int) {
	s.src = newSource(s.seed + uint64(iterIndex))
}

func (s *Probabilistic) ShouldContinue() bool { return true }

func (s *Probabilistic) Fair() bool { return true }
