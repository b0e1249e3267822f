package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the engine configuration, read from a shrike.toml file.
type Config struct {
	Heap  HeapConfig  `toml:"heap"`
	Debug DebugConfig `toml:"debug"`
}

// HeapConfig bounds the underlying heap.
type HeapConfig struct {
	// MaxBlocks caps the live pool count; zero means unlimited.
	MaxBlocks int `toml:"max-blocks"`
}

// DebugConfig controls diagnostics.
type DebugConfig struct {
	ShowInstructions bool `toml:"show-instructions"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{}
}

// LoadConfig parses a shrike.toml file from the given directory.
func LoadConfig(dir string) (Config, error) {
	path := filepath.Join(dir, "shrike.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return cfg, nil
}

// FindAndLoadConfig walks up from startDir looking for a shrike.toml
// file. It returns the defaults when none is found.
func FindAndLoadConfig(startDir string) (Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return Config{}, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "shrike.toml")); err == nil {
			return LoadConfig(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return DefaultConfig(), nil
		}
		dir = parent
	}
}
