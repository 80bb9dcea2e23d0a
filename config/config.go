// Package config handles corvid.toml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file the CLI looks for.
const FileName = "corvid.toml"

// Config holds the engine and REPL settings.
type Config struct {
	Engine EngineConfig `toml:"engine"`
	REPL   REPLConfig   `toml:"repl"`
	Log    LogConfig    `toml:"log"`
}

// EngineConfig configures interpreter limits.
type EngineConfig struct {
	MaxCallDepth int `toml:"max-call-depth"`
}

// REPLConfig configures the interactive prompt.
type REPLConfig struct {
	Prompt string `toml:"prompt"`
	Banner string `toml:"banner"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{MaxCallDepth: 1024},
		REPL: REPLConfig{
			Prompt: "> ",
			Banner: "corvid 0.1.0 — type 'exit' to quit",
		},
	}
}

// Load parses a corvid.toml file and fills unset fields with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if cfg.Engine.MaxCallDepth < 1 {
		cfg.Engine.MaxCallDepth = Default().Engine.MaxCallDepth
	}
	if cfg.REPL.Prompt == "" {
		cfg.REPL.Prompt = Default().REPL.Prompt
	}

	return cfg, nil
}

// FindAndLoad walks up from startDir looking for a corvid.toml file.
// Returns nil without error when no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}
