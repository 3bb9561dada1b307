package espsimulator

import (
	"math/rand/v2"
	"sync"
)

// Sampler produces synthetic temperatures
type Sampler interface {
	Sample() int
}

// UniformSampler draws integers uniformly from [low, high)
type UniformSampler struct {
	mu   sync.Mutex
	rng  *rand.Rand
	low  int
	span int
}

// NewUniformSampler returns a sampler over [low, high). It panics if high <= low.
func NewUniformSampler(low, high int, seed uint64) *UniformSampler {
	if high <= low {
		panic("espsimulator: empty sampling range")
	}
	return &UniformSampler{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		low:  low,
		span: high - low,
	}
}

func (s *UniformSampler) Sample() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.low + s.rng.IntN(s.span)
}

// SamplerFunc adapts a plain function to Sampler
type SamplerFunc func() int

func (f SamplerFunc) Sample() int { return f() }
