package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/inference-sim/lbsim/sim"
)

// requestsPerServer sizes the default initial burst when none is configured.
const requestsPerServer = 100

// defaultSimConfig returns the stock policy with the CLI's pool defaults.
// InitialRequests is left negative so that it can be derived from the final
// server count once the file and flags have been applied.
func defaultSimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Servers = 10
	cfg.Runtime = 10000
	cfg.InitialRequests = -1
	return cfg
}

// loadSimConfig parses a YAML run configuration on top of base.
// Fields absent from the file keep their value from base.
// Uses strict field checking: typos must cause errors.
func loadSimConfig(path string, base sim.Config) (sim.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading run config: %w", err)
	}
	cfg := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil // empty file
		}
		return base, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return cfg, nil
}

// finalizeSimConfig fills derived defaults and validates.
func finalizeSimConfig(cfg sim.Config) (sim.Config, error) {
	if cfg.InitialRequests < 0 {
		cfg.InitialRequests = cfg.Servers * requestsPerServer
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
