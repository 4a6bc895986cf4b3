package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/shepherd/internal/service"
)

// DefaultPath is the config file consulted when --config is not given.
const DefaultPath = "shepherd.yml"

// Config describes the supervised service group.
type Config struct {
	GracePeriod time.Duration  `yaml:"grace_period"`
	LogDir      string         `yaml:"log_dir"`
	History     bool           `yaml:"history"`
	Services    []service.Spec `yaml:"services"`
}

// Default returns the compiled-in service group: a media server, the Python
// backend agent and the frontend dev server, mirroring the stack the tool
// was built to babysit.
func Default() *Config {
	return &Config{
		GracePeriod: 10 * time.Second,
		LogDir:      ".shepherd",
		History:     true,
		Services: []service.Spec{
			{ID: "media", Command: "livekit-server", Args: []string{"--dev"}},
			{ID: "backend", Command: "uv", Args: []string{"run", "src/agent.py", "dev"}, Dir: "backend"},
			{ID: "frontend", Command: "pnpm", Args: []string{"dev"}, Dir: "frontend"},
		},
	}
}

// Load reads and validates a YAML config file. A missing file at the default
// path falls back to the compiled-in group; a missing file at an explicit
// path is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{History: true}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Second
	}
	if cfg.LogDir == "" {
		cfg.LogDir = ".shepherd"
	}
}

// Validate checks for an empty group, duplicate or empty service IDs and
// empty commands.
func Validate(cfg *Config) error {
	if len(cfg.Services) == 0 {
		return fmt.Errorf("config defines no services")
	}

	ids := make(map[string]struct{}, len(cfg.Services))
	for _, s := range cfg.Services {
		if s.ID == "" {
			return fmt.Errorf("service with empty id")
		}
		if s.Command == "" {
			return fmt.Errorf("service %q has empty command", s.ID)
		}
		if _, dup := ids[s.ID]; dup {
			return fmt.Errorf("duplicate service id: %q", s.ID)
		}
		ids[s.ID] = struct{}{}
	}

	return nil
}

// ValidateDirs checks that every declared working directory exists on disk.
// Kept separate from Validate so plan inspection works on other machines.
func ValidateDirs(cfg *Config) error {
	for _, s := range cfg.Services {
		if s.Dir == "" {
			continue
		}
		info, err := os.Stat(s.Dir)
		if err != nil {
			return fmt.Errorf("service %q: working dir %s: %w", s.ID, s.Dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("service %q: working dir %s is not a directory", s.ID, s.Dir)
		}
	}
	return nil
}
