// Package config loads the YAML configuration of the htree tools.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"StateHistory/logging"
	"StateHistory/types"
)

// Config is the top-level configuration file.
type Config struct {
	Backend  Backend  `yaml:"backend"`
	Registry Registry `yaml:"registry"`
	Log      Log      `yaml:"log"`
}

// Backend describes the history file and its block model.
type Backend struct {
	Path              string `yaml:"path"`
	BlockSize         int    `yaml:"block_size"`
	MaxChildren       int    `yaml:"max_children"`
	ProviderVersion   int32  `yaml:"provider_version"`
	StartTime         int64  `yaml:"start_time"`
	Extension         string `yaml:"extension"`
	InMemory          bool   `yaml:"in_memory"`
	CacheBytes        int64  `yaml:"cache_bytes"`
	RebuildOnMismatch bool   `yaml:"rebuild_on_mismatch"`
	Mmap              bool   `yaml:"mmap"`
}

// Registry describes the attribute path registry.
type Registry struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

func Default() Config {
	return Config{
		Backend: Backend{
			Path:        "state.ht",
			BlockSize:   types.DefaultBlockSize,
			MaxChildren: types.DefaultMaxChildren,
			Extension:   "quark",
			CacheBytes:  32 << 20,
		},
		Registry: Registry{Path: "quarks"},
		Log:      Log{Level: "info"},
	}
}

// Load reads path over the defaults, applies HTREE_* environment overrides
// and validates the result. An empty path means defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parse %s: %v", types.ErrConfig, path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTREE_PATH"); v != "" {
		c.Backend.Path = v
	}
	if v := os.Getenv("HTREE_PROVIDER_VERSION"); v != "" {
		if i, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Backend.ProviderVersion = int32(i)
		}
	}
	if v := os.Getenv("HTREE_REGISTRY_PATH"); v != "" {
		c.Registry.Path = v
	}
	if v := os.Getenv("HTREE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("HTREE_LOG_JSON"); v != "" {
		c.Log.JSON = v == "true" || v == "1"
	}
}

// Validate checks the values that cannot be fixed by defaults. Block sizes
// are checked against the fan-out when the tree is built.
func (c Config) Validate() error {
	b := c.Backend
	if b.Path == "" && !b.InMemory {
		return fmt.Errorf("%w: backend.path is required unless backend.in_memory is set", types.ErrConfig)
	}
	if b.BlockSize <= 0 {
		return fmt.Errorf("%w: backend.block_size must be > 0", types.ErrConfig)
	}
	if b.MaxChildren < 2 {
		return fmt.Errorf("%w: backend.max_children must be >= 2", types.ErrConfig)
	}
	if b.CacheBytes < 0 {
		return fmt.Errorf("%w: backend.cache_bytes must be >= 0", types.ErrConfig)
	}
	switch b.Extension {
	case "", "quark", "plain":
	default:
		return fmt.Errorf("%w: backend.extension %q is not quark or plain", types.ErrConfig, b.Extension)
	}
	if c.Registry.Path == "" && !c.Registry.InMemory {
		return fmt.Errorf("%w: registry.path is required unless registry.in_memory is set", types.ErrConfig)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", types.ErrConfig, err)
	}
	return nil
}

// Logging converts the log section.
func (c Config) Logging() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.Config{Level: level, JSON: c.Log.JSON, Service: "htree"}
}
