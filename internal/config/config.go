package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config holds all setback configuration. Values resolve in order:
// defaults, then the YAML file (if present), then SETBACK_* env vars.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" env:"SETBACK_BIND"`
	Port int    `yaml:"port" env:"SETBACK_PORT"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"SETBACK_DB_PATH"`
}

type SweepConfig struct {
	Enabled       bool `yaml:"enabled" env:"SETBACK_SWEEP_ENABLED"`
	IntervalHours int  `yaml:"interval_hours" env:"SETBACK_SWEEP_INTERVAL_HOURS"`
}

type LogConfig struct {
	Mode string `yaml:"mode" env:"SETBACK_LOG_MODE"` // "dev" or "prod"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37791,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Sweep: SweepConfig{
			Enabled:       true,
			IntervalHours: 6,
		},
		Log: LogConfig{
			Mode: "dev",
		},
	}
}

// Load builds the effective configuration. path may be empty, in which case
// only defaults and env vars apply; a named file that does not exist is an
// error, so typos fail loudly.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
