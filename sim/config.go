package sim

import "fmt"

// BurstConfig groups the stochastic mid-run traffic burst policy.
// Each tick draws an integer in [0, DrawMax]; a burst fires when it equals Trigger.
// Burst size is drawn in [servers*MinFactor, servers*MaxFactor].
type BurstConfig struct {
	DrawMax   int `yaml:"draw_max"`   // upper bound of the per-tick draw (default 100)
	Trigger   int `yaml:"trigger"`    // draw value that fires a burst (default 0)
	MinFactor int `yaml:"min_factor"` // burst size lower bound, in multiples of the pool size (default 1)
	MaxFactor int `yaml:"max_factor"` // burst size upper bound, in multiples of the pool size (default 10)
}

// DurationConfig bounds the processing duration of generated requests (ticks, inclusive).
type DurationConfig struct {
	Min int `yaml:"min"` // default 2
	Max int `yaml:"max"` // default 16
}

// Config groups everything a LoadBalancer needs at construction. It is never reloaded.
type Config struct {
	Runtime         int64          `yaml:"runtime"`          // number of ticks to simulate
	Servers         int            `yaml:"servers"`          // fixed pool size
	InitialRequests int            `yaml:"initial_requests"` // size of the initial burst
	Burst           BurstConfig    `yaml:"burst"`
	Durations       DurationConfig `yaml:"durations"`
}

// DefaultConfig returns the stock burst and duration policy with an empty pool.
func DefaultConfig() Config {
	return Config{
		Burst: BurstConfig{
			DrawMax:   100,
			Trigger:   0,
			MinFactor: 1,
			MaxFactor: 10,
		},
		Durations: DurationConfig{
			Min: 2,
			Max: 16,
		},
	}
}

// Validate checks counts and policy ranges.
func (c *Config) Validate() error {
	if c.Runtime < 0 {
		return fmt.Errorf("runtime must be non-negative, got %d", c.Runtime)
	}
	if c.Servers < 0 {
		return fmt.Errorf("servers must be non-negative, got %d", c.Servers)
	}
	if c.InitialRequests < 0 {
		return fmt.Errorf("initial_requests must be non-negative, got %d", c.InitialRequests)
	}
	if err := c.Burst.Validate(); err != nil {
		return fmt.Errorf("burst: %w", err)
	}
	if err := c.Durations.Validate(); err != nil {
		return fmt.Errorf("durations: %w", err)
	}
	return nil
}

// Validate checks the burst draw and size ranges.
func (b BurstConfig) Validate() error {
	if b.DrawMax < 0 {
		return fmt.Errorf("draw_max must be non-negative, got %d", b.DrawMax)
	}
	if b.Trigger < 0 || b.Trigger > b.DrawMax {
		return fmt.Errorf("trigger must be in [0, %d], got %d", b.DrawMax, b.Trigger)
	}
	if b.MinFactor < 0 {
		return fmt.Errorf("min_factor must be non-negative, got %d", b.MinFactor)
	}
	if b.MaxFactor < b.MinFactor {
		return fmt.Errorf("max_factor (%d) must be >= min_factor (%d)", b.MaxFactor, b.MinFactor)
	}
	return nil
}

// Validate checks that durations are positive and ordered.
func (d DurationConfig) Validate() error {
	if d.Min < 1 {
		return fmt.Errorf("min must be >= 1, got %d", d.Min)
	}
	if d.Max < d.Min {
		return fmt.Errorf("max (%d) must be >= min (%d)", d.Max, d.Min)
	}
	return nil
}
