// Package random supplies the bounded random magnitudes that drive the
// simulation: fuel amounts, price ceilings, prices and pacing delays.
package random

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Source generates bounded random values. Implementations must be safe for
// concurrent use.
type Source interface {
	// Range returns a value in [min, max) floored to cents.
	Range(min, max float64) float64
	// AroundAverage returns avg shifted by up to dev in either direction,
	// floored to cents.
	AroundAverage(avg, dev float64) float64
	// Duration returns a delay in [min, max).
	Duration(min, max time.Duration) time.Duration
}

// Rand is a Source backed by a seeded PCG generator.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a Rand seeded with seed. Equal seeds yield equal sequences.
func New(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeSeeded returns a Rand seeded from the wall clock.
func NewTimeSeeded() *Rand {
	return New(uint64(time.Now().UnixNano()))
}

func (s *Rand) Range(min, max float64) float64 {
	s.mu.Lock()
	f := s.r.Float64()
	s.mu.Unlock()
	return floorCents(f*(max-min) + min)
}

func (s *Rand) AroundAverage(avg, dev float64) float64 {
	s.mu.Lock()
	d := s.r.Float64() * dev
	if s.r.IntN(2) == 0 {
		d = -d
	}
	s.mu.Unlock()
	return floorCents(avg + d)
}

func (s *Rand) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + time.Duration(s.r.Int64N(int64(max-min)))
}

func floorCents(v float64) float64 {
	return math.Floor(v*100) / 100
}
