// Package config loads the YAML tunables shared by the API server and focusctl.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/focusguard/focusguard/go/internal/reward"
	"github.com/focusguard/focusguard/go/internal/session"
)

const DefaultPath = "config.yaml"

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Reward  reward.Policy       `yaml:"reward"`
	Session session.Config      `yaml:"session"`
	Sweep   session.SweepConfig `yaml:"sweep"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Reward:  reward.DefaultPolicy(),
		Session: session.DefaultConfig(),
		Sweep:   session.DefaultSweepConfig(),
	}
	cfg.Server.Port = "8080"
	return cfg
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("invalid reward policy: %w", err)
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("invalid sweep config: %w", err)
	}
	if c.Session.MaxPlannedDuration <= 0 {
		return fmt.Errorf("session.max_planned_duration must be positive")
	}
	return nil
}
