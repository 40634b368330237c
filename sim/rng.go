package sim

import (
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce identical logs, histories and summaries.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === RandomSource ===

// RandomSource draws bounded integers for the engine and the traffic generator.
// Both share one source so that a single seed fixes the whole run.
type RandomSource interface {
	// Between returns a uniformly drawn integer in [min, max]. min <= max.
	Between(min, max int) int
}

// RandomFunc adapts a plain function to RandomSource.
type RandomFunc func(min, max int) int

// Between calls f(min, max).
func (f RandomFunc) Between(min, max int) int {
	return f(min, max)
}

// SeededRNG is the sequential RandomSource used for real runs.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type SeededRNG struct {
	key SimulationKey
	rng *rand.Rand
}

// NewSeededRNG creates a SeededRNG from a SimulationKey.
func NewSeededRNG(key SimulationKey) *SeededRNG {
	return &SeededRNG{
		key: key,
		rng: rand.New(rand.NewSource(int64(key))),
	}
}

// Between returns a uniformly drawn integer in [min, max].
// Panics if max < min.
func (s *SeededRNG) Between(min, max int) int {
	if max < min {
		panic("Between: max must not be less than min")
	}
	return min + s.rng.Intn(max-min+1)
}

// Key returns the SimulationKey used to create this SeededRNG.
func (s *SeededRNG) Key() SimulationKey {
	return s.key
}
