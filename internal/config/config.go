package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.optsync/config.toml.
type Config struct {
	DefaultNamespace string         `toml:"default_namespace"`
	Snapshot         SnapshotConfig `toml:"snapshot"`
	Sim              SimConfig      `toml:"sim"`
}

// SnapshotConfig tunes the background cache persister.
type SnapshotConfig struct {
	DebounceMS int `toml:"debounce_ms"`
}

// SimConfig tunes the simulated collaborator used by the demo daemon.
type SimConfig struct {
	LatencyMS int `toml:"latency_ms"`
	PageSize  int `toml:"page_size"`
	Pages     int `toml:"pages"`
}

// Default returns the config used when no config.toml exists yet.
func Default() *Config {
	return &Config{
		DefaultNamespace: "main",
		Snapshot:         SnapshotConfig{DebounceMS: 500},
		Sim:              SimConfig{LatencyMS: 40, PageSize: 5, Pages: 3},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
