package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file based on its extension and overlays it
// on top of base. Supports: .yaml/.yml, .json, .toml
func Load(path string, base Config) (Config, error) {
	cfg := base
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func Validate(cfg Config) error {
	if cfg.ModelPath == "" {
		return fmt.Errorf("model_path is required")
	}
	if cfg.Slots < 1 {
		return fmt.Errorf("slots must be >= 1")
	}
	if cfg.SessionTurnCap < 1 {
		return fmt.Errorf("session_turn_cap must be >= 1")
	}
	if cfg.UsageQueueCap < 1 {
		return fmt.Errorf("usage_queue_cap must be >= 1")
	}
	if cfg.DegradedThreshold < 1 || cfg.CrashThreshold < cfg.DegradedThreshold {
		return fmt.Errorf("crash_threshold must be >= degraded_threshold >= 1")
	}
	return nil
}
