// Package config loads wordweave settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the variable that points at a config file.
const PathEnv = "WORDWEAVE_CONFIG"

// Config is the root configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Levels  LevelsConfig  `yaml:"levels"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects where progress is persisted.
type StorageConfig struct {
	Backend string `yaml:"backend" env:"WORDWEAVE_STORAGE_BACKEND" env-default:"sqlite"`
	Path    string `yaml:"path"    env:"WORDWEAVE_STORAGE_PATH"    env-default:".wordweave/progress.db"`
}

// LevelsConfig locates level documents.
type LevelsConfig struct {
	Dir   string `yaml:"dir"   env:"WORDWEAVE_LEVELS_DIR"   env-default:"levels"`
	Total int    `yaml:"total" env:"WORDWEAVE_TOTAL_LEVELS" env-default:"0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"WORDWEAVE_LOG_LEVEL"  env-default:"warn"`
	Format string `yaml:"format" env:"WORDWEAVE_LOG_FORMAT" env-default:"text"`
}

// Load reads configuration. Priority: ENV > YAML > defaults.
// The file is read only when WORDWEAVE_CONFIG names one; it must then exist.
func Load() (*Config, error) {
	var cfg Config

	if path := os.Getenv(PathEnv); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks values the tags cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Backend) {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("storage.backend must be sqlite or badger (got %q)", c.Storage.Backend)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if c.Levels.Total < 0 {
		return fmt.Errorf("levels.total must be >= 0 (got %d)", c.Levels.Total)
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return fmt.Errorf("log.level must be debug, info, warn or error (got %q)", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

// NewLogger builds a logger writing to w according to c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
