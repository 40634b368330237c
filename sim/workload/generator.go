package workload

import (
	"fmt"

	"github.com/inference-sim/lbsim/sim"
)

// Default request duration bounds, in ticks (inclusive).
const (
	DefaultMinDuration = 2
	DefaultMaxDuration = 16
)

// Generator creates synthetic requests with random addresses and durations.
// It owns the request ID sequence, so IDs are unique and increasing for the
// lifetime of the generator. All draws come from the shared RandomSource in
// a fixed order: source octets, destination octets, duration.
type Generator struct {
	rng         sim.RandomSource
	nextID      int64
	minDuration int
	maxDuration int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithDurations overrides the duration range.
func WithDurations(min, max int) GeneratorOption {
	return func(g *Generator) {
		g.minDuration = min
		g.maxDuration = max
	}
}

// WithFirstID sets the first ID the generator hands out.
func WithFirstID(id int64) GeneratorOption {
	return func(g *Generator) {
		g.nextID = id
	}
}

// NewGenerator creates a Generator drawing from rng.
func NewGenerator(rng sim.RandomSource, opts ...GeneratorOption) (*Generator, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source must not be nil")
	}
	g := &Generator{
		rng:         rng,
		minDuration: DefaultMinDuration,
		maxDuration: DefaultMaxDuration,
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := (sim.DurationConfig{Min: g.minDuration, Max: g.maxDuration}).Validate(); err != nil {
		return nil, fmt.Errorf("invalid duration range: %w", err)
	}
	return g, nil
}

// NewGeneratorFromConfig creates a Generator using the duration range in cfg.
func NewGeneratorFromConfig(cfg sim.Config, rng sim.RandomSource) (*Generator, error) {
	return NewGenerator(rng, WithDurations(cfg.Durations.Min, cfg.Durations.Max))
}

// Generate returns n new requests. n <= 0 returns an empty slice.
func (g *Generator) Generate(n int) []*sim.Request {
	if n <= 0 {
		return []*sim.Request{}
	}
	requests := make([]*sim.Request, 0, n)
	for i := 0; i < n; i++ {
		src := g.address()
		dst := g.address()
		duration := g.rng.Between(g.minDuration, g.maxDuration)
		requests = append(requests, sim.NewRequest(g.nextID, src, dst, duration))
		g.nextID++
	}
	return requests
}

// NextID returns the ID the next generated request will receive.
func (g *Generator) NextID() int64 {
	return g.nextID
}

// address draws a unicast-looking dotted IPv4 address: the first and last
// octets are never 0.
func (g *Generator) address() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		g.rng.Between(1, 255),
		g.rng.Between(0, 255),
		g.rng.Between(0, 255),
		g.rng.Between(1, 255),
	)
}
