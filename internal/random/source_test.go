package random

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRangeBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 1000; i++ {
		v := s.Range(10, 50)
		if v < 10 || v >= 50 {
			t.Fatalf("value %v out of [10, 50)", v)
		}
		if c := v * 100; math.Abs(c-math.Round(c)) > 1e-6 {
			t.Fatalf("value %v not floored to cents", v)
		}
	}
}

func TestAroundAverageBounds(t *testing.T) {
	s := New(2)
	var below, above bool
	for i := 0; i < 1000; i++ {
		v := s.AroundAverage(1.4, 0.5)
		if v < 0.89 || v > 1.9 {
			t.Fatalf("value %v too far from average", v)
		}
		below = below || v < 1.4
		above = above || v > 1.4
	}
	assert.True(t, below && above, "expected values on both sides of the average")
}

func TestDuration(t *testing.T) {
	s := New(3)
	assert.Equal(t, time.Second, s.Duration(time.Second, time.Second))
	for i := 0; i < 100; i++ {
		d := s.Duration(3*time.Second, 7*time.Second)
		if d < 3*time.Second || d >= 7*time.Second {
			t.Fatalf("duration %v out of range", d)
		}
	}
}

func TestDeterministicSeed(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Range(0, 100), b.Range(0, 100))
	}
}

func TestConcurrentUse(t *testing.T) {
	s := NewTimeSeeded()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.Range(1, 2)
				_ = s.Duration(time.Millisecond, 2*time.Millisecond)
			}
		}()
	}
	wg.Wait()
}
