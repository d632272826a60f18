// Package rng provides the random capability consumed by the optimizer core.
package rng

import "math/rand"

// Source is the only nondeterminism the core depends on.
type Source interface {
	// IntRange returns a uniform integer in [lo, hi). It returns lo when hi <= lo.
	IntRange(lo, hi int) int
	// Float64 returns a uniform float in [0, 1).
	Float64() float64
	// Chance returns true with probability p.
	Chance(p float64) bool
}

type Rand struct {
	r *rand.Rand
}

func New(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

// Wrap adapts an existing *rand.Rand.
func Wrap(r *rand.Rand) *Rand {
	return &Rand{r: r}
}

func (s *Rand) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.r.Intn(hi-lo)
}

func (s *Rand) Float64() float64 {
	return s.r.Float64()
}

func (s *Rand) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return s.r.Float64() < p
}
