package config

import (
	"fmt"
	"sync/atomic"
)

// current is the configuration the process is running with. The watcher
// swaps it on every successful reload.
var current atomic.Pointer[Config]

// Current returns the configuration most recently loaded with Load or
// ReloadConfig, or nil before the first load.
func Current() *Config {
	return current.Load()
}

// Load reads path (built-in defaults when empty) with CADENCE_* overrides
// and makes the result current.
func Load(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// ReloadConfig is Load for a running process: on error the current
// configuration is kept.
func ReloadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	return cfg, nil
}
