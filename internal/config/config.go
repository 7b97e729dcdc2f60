// Package config loads the core's process-topology configuration: the
// data directory, the Unix-socket path, the WebSocket host/port, and
// the debug flag. This is deliberately separate from the Settings
// store in package store, which holds domain-level, runtime-mutable
// preferences (agency mode, context windows, model overrides) — the
// split mirrors the teacher's divide between internal/config.Config
// (process topology, loaded once at boot) and its per-cell runtime
// settings.
//
// Grounded on the teacher's internal/config.Config: an optional YAML
// file merged under hardcoded defaults, with CLI flags layered on top
// by the caller (cmd/core), not by this package.
//
// Called by: cmd/core, once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the core's process-topology configuration. Every field
// has a hardcoded default; a YAML file overrides defaults, and CLI
// flags (applied by the caller after Load) override the file.
type Config struct {
	DataDir          string `yaml:"data_dir"`
	UnixSocket       string `yaml:"unix_socket"`
	WSHost           string `yaml:"ws_host"`
	WSPort           string `yaml:"ws_port"`
	Debug            bool   `yaml:"debug"`
	MaxConcurrentLLM int    `yaml:"max_concurrent_llm"`
}

// Default returns the hardcoded baseline configuration; cmd/core uses
// it as is when no file is given or the given file cannot be loaded.
func Default() *Config {
	return &Config{
		DataDir:          "./data",
		UnixSocket:       "", // resolved against DataDir by Resolve if left empty
		WSHost:           "127.0.0.1",
		WSPort:           "8765",
		Debug:            false,
		MaxConcurrentLLM: 1,
	}
}

// Load reads a YAML config file and merges it over Default(). Absent
// fields in the file keep the default's value.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve fills in any path fields left empty by fixed defaults
// relative to DataDir, the same "derive the exact paths from a single
// root directory injected at boot" rule spec.md §6 states.
func (c *Config) Resolve() {
	if c.UnixSocket == "" {
		c.UnixSocket = filepath.Join(c.DataDir, "core.sock")
	}
	if c.MaxConcurrentLLM <= 0 {
		c.MaxConcurrentLLM = 1
	}
}
