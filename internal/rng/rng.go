// Package rng provides deterministic, lazily extended random sequences.
// A sequence is used to seed per-drone jitter reproducibly: the value at any
// index depends only on the seed, never on the order in which indices are
// requested or on how many goroutines request them.
package rng

import (
	"math/rand"
	"sync"
)

// DefaultMax is the default ceiling of generated values.
const DefaultMax = 0xFFFFFFFF

// Sequence is a fork-able pseudorandom integer stream keyed by index.
// Accessing index i extends the internal cache sequentially up to i+1, so
// the value at index k depends only on the seed and on indices 0..k having
// been generated in order. Extension is serialized; the cache only grows.
type Sequence struct {
	mu    sync.Mutex
	cache []uint32
	max   uint32
	src   *rand.Rand
}

// New creates a sequence with the default value ceiling.
func New(seed int64) *Sequence {
	return NewWithMax(seed, DefaultMax)
}

// NewWithMax creates a sequence whose values fall in [0, max].
func NewWithMax(seed int64, max uint32) *Sequence {
	return &Sequence{
		max: max,
		src: rand.New(rand.NewSource(seed)),
	}
}

// Get returns the value at the given index, generating any missing values up
// to and including it in strict sequential order. Once generated, an index
// always yields the same value.
func (s *Sequence) Get(index int) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.cache) <= index {
		s.cache = append(s.cache, uint32(s.src.Int63n(int64(s.max)+1)))
	}
	return s.cache[index]
}

// GetFloat returns the value at the given index scaled into [0, 1].
// The upper bound is inclusive because values up to and including the
// ceiling are generated.
func (s *Sequence) GetFloat(index int) float64 {
	return float64(s.Get(index)) / float64(s.max)
}

// Fork creates an independent sequence seeded from the value at the given
// index. Forking never perturbs the parent stream beyond generating the
// requested index.
func (s *Sequence) Fork(index int) *Sequence {
	return NewWithMax(int64(s.Get(index)), s.max)
}

// Len returns the number of values generated so far.
func (s *Sequence) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Max returns the value ceiling of the sequence.
func (s *Sequence) Max() uint32 {
	return s.max
}
