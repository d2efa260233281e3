package score

import (
	"math/rand/v2"
	"sync"
)

// Probability bands. The sampler never returns a value in [RealBandHigh, FakeBandLow).
const (
	RealBandLow  = 0
	RealBandHigh = 40
	FakeBandLow  = 60
	FakeBandHigh = 100
)

// Source supplies uniform integers in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Sampler draws a fake-probability
type Sampler interface {
	Sample() int
}

// globalSource uses the runtime's goroutine-safe generator
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// NewSource returns a goroutine-safe source. A zero seed uses the runtime generator.
func NewSource(seed uint64) Source {
	if seed == 0 {
		return globalSource{}
	}
	return &lockedSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// lockedSource serializes access to a seeded generator
type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

// BimodalSampler flips a fair coin and draws from the "likely real" band [0,40)
// on heads or the "likely fake" band [60,100) on tails.
type BimodalSampler struct {
	src Source
}

// NewBimodalSampler creates a sampler over src. A nil src uses the runtime generator.
func NewBimodalSampler(src Source) *BimodalSampler {
	if src == nil {
		src = globalSource{}
	}
	return &BimodalSampler{src: src}
}

// Sample returns a value in [0,40) ∪ [60,100)
func (s *BimodalSampler) Sample() int {
	if s.src.IntN(2) == 0 {
		return RealBandLow + s.src.IntN(RealBandHigh-RealBandLow)
	}
	return FakeBandLow + s.src.IntN(FakeBandHigh-FakeBandLow)
}

// FixedSampler always returns the same probability
type FixedSampler int

// Sample returns the fixed value
func (f FixedSampler) Sample() int { return int(f) }
