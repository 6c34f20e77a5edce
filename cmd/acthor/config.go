package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// monitorConfig is the file-based configuration for the monitor command.
type monitorConfig struct {
	Host           string `yaml:"host"`
	Listen         string `yaml:"listen"`
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	SlowIntervalMs int    `yaml:"slow_interval_ms"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	OverrideMode   string `yaml:"override_mode"`
}

func defaultMonitorConfig() monitorConfig {
	return monitorConfig{
		Listen:         ":9090",
		PollIntervalMs: 5000,
		TimeoutMs:      3000,
	}
}

// loadMonitorConfig reads and validates a config file. An empty path
// returns the defaults; host may then come from the --host flag.
func loadMonitorConfig(path string) (monitorConfig, error) {
	cfg := defaultMonitorConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c monitorConfig) validate() error {
	if c.Listen == "" {
		return errors.New("listen address required")
	}
	if c.PollIntervalMs <= 0 {
		return errors.New("poll_interval_ms must be > 0")
	}
	if c.SlowIntervalMs < 0 {
		return errors.New("slow_interval_ms must be >= 0")
	}
	if c.TimeoutMs <= 0 {
		return errors.New("timeout_ms must be > 0")
	}
	switch c.OverrideMode {
	case "", "override", "replace", "minimum":
	default:
		return fmt.Errorf("unknown override_mode %q", c.OverrideMode)
	}
	return nil
}

func (c monitorConfig) pollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c monitorConfig) slowInterval() time.Duration {
	return time.Duration(c.SlowIntervalMs) * time.Millisecond
}

func (c monitorConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}
