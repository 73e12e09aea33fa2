// Package config loads optional YAML defaults for the CLI: every field
// here has a corresponding flag, and flags always win over the config
// file when both are set.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every value the CLI also exposes as a flag, minus url,
// outfile and parts, which are always positional.
type Config struct {
	Resume             *bool    `yaml:"resume,omitempty"`
	Debug              *bool    `yaml:"debug,omitempty"`
	Lock               *bool    `yaml:"lock,omitempty"`
	RateLimitBPS       *int     `yaml:"rate_limit_bps,omitempty"`
	MaxDurationSeconds *float64 `yaml:"max_duration_seconds,omitempty"`
	NotifyWebhook      *string  `yaml:"notify_webhook,omitempty"`
	NotifyScript       *string  `yaml:"notify_script,omitempty"`
}

// Load reads and strictly decodes a YAML config file: unknown keys are an
// error, since a typo'd key silently ignored would otherwise look like a
// successfully-applied setting.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}
