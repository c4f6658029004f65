// Package config loads the engine's runtime configuration from a JSON
// file with environment variable overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/tandemlabs/tandem-engine/internal/domain"
)

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath           string `json:"db_path" env:"TANDEM_DB_PATH"`
	ListenAddr       string `json:"listen_addr" env:"TANDEM_LISTEN_ADDR"`
	StoryMaxTurns    int    `json:"story_max_turns" env:"TANDEM_STORY_MAX_TURNS"`
	LayersPerUser    int    `json:"layers_per_user" env:"TANDEM_LAYERS_PER_USER"`
	SongPartsPerUser int    `json:"song_parts_per_user" env:"TANDEM_SONG_PARTS_PER_USER"`
	SnapshotPollMs   int    `json:"snapshot_poll_ms" env:"TANDEM_SNAPSHOT_POLL_MS"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON config file, layers environment variable overrides on
// top, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	return finish(&cfg)
}

// FromEnv builds a configuration from defaults and environment overrides
// alone, for running without a config file.
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "tandem.db"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":9700"
	}
	if c.StoryMaxTurns == 0 {
		c.StoryMaxTurns = 5
	}
	if c.LayersPerUser == 0 {
		c.LayersPerUser = 2
	}
	if c.SongPartsPerUser == 0 {
		c.SongPartsPerUser = 2
	}
	if c.SnapshotPollMs == 0 {
		c.SnapshotPollMs = 1000
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.StoryMaxTurns < 1 {
		problems = append(problems, "story_max_turns must be positive")
	}
	if c.LayersPerUser < 1 {
		problems = append(problems, "layers_per_user must be positive")
	}
	if c.SongPartsPerUser < 1 {
		problems = append(problems, "song_parts_per_user must be positive")
	}
	if c.SnapshotPollMs < 100 {
		problems = append(problems, "snapshot_poll_ms must be at least 100")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
