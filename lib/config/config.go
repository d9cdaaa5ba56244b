// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "LODESTAR_CONFIG"

// Config is the location-sharing subsystem configuration.
type Config struct {
	// Storage configures the persisted state database.
	Storage StorageConfig `yaml:"storage"`

	// Publish configures the position publish loop.
	Publish PublishConfig `yaml:"publish"`

	// Sim configures the location-sim command.
	Sim SimConfig `yaml:"sim"`
}

// StorageConfig configures persisted client state.
type StorageConfig struct {
	// Path is the SQLite database file holding the device ownership
	// ledger. Default: lodestar-state.db in the working directory.
	Path string `yaml:"path"`
}

// PublishConfig configures the geolocation publish loop. Zero fields
// keep the defaults; these knobs exist for the sim command and tests,
// production clients run the defaults.
type PublishConfig struct {
	// DebounceWindow is how long rapid position updates coalesce
	// before one publish fires. Default 5s.
	DebounceWindow time.Duration `yaml:"debounce_window"`

	// StaleInterval is how old the last publish may grow before the
	// last known position is re-published. Default 30s.
	StaleInterval time.Duration `yaml:"stale_interval"`

	// FailureThreshold is the number of consecutive publish failures
	// after which a beacon is excluded from publishing. Default 2.
	FailureThreshold int `yaml:"failure_threshold"`
}

// SimConfig configures the simulated walk.
type SimConfig struct {
	// Latitude and Longitude are the walk's starting coordinates.
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`

	// StepDegrees is the maximum coordinate delta per simulated fix.
	StepDegrees float64 `yaml:"step_degrees"`

	// FixInterval is how often the simulated device produces a fix.
	FixInterval time.Duration `yaml:"fix_interval"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Path: "lodestar-state.db"},
		Publish: PublishConfig{
			DebounceWindow:   5 * time.Second,
			StaleInterval:    30 * time.Second,
			FailureThreshold: 2,
		},
		Sim: SimConfig{
			Latitude:    54.001927,
			Longitude:   -8.253491,
			StepDegrees: 0.0001,
			FixInterval: 2 * time.Second,
		},
	}
}

// Load reads the config file at path. When path is empty, the
// LODESTAR_CONFIG environment variable is consulted; when that is
// also empty, Default() is returned. Unknown YAML fields are
// rejected.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Publish.DebounceWindow < 0 {
		return fmt.Errorf("publish.debounce_window must not be negative")
	}
	if c.Publish.StaleInterval < 0 {
		return fmt.Errorf("publish.stale_interval must not be negative")
	}
	if c.Publish.FailureThreshold < 1 {
		return fmt.Errorf("publish.failure_threshold must be at least 1")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	return nil
}
