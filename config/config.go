// Package config loads watchfeed's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the loaded application configuration.
type Config struct {
	Usernames      []string
	OutputDir      string
	SelectorsPath  string
	CachePath      string
	StatusDB       string
	RequestSpacing time.Duration
	CacheTTL       time.Duration
	MinUserDelay   time.Duration
	MaxUserDelay   time.Duration
}

// fileConfig mirrors the on-disk YAML shape. Durations are strings so the
// file can say "2s" or "1h".
type fileConfig struct {
	Usernames      []string `yaml:"usernames"`
	OutputDir      string   `yaml:"output_dir"`
	SelectorsPath  string   `yaml:"selectors_path"`
	CachePath      string   `yaml:"cache_path"`
	StatusDB       string   `yaml:"status_db"`
	RequestSpacing string   `yaml:"request_spacing"`
	CacheTTL       string   `yaml:"cache_ttl"`
	MinUserDelay   string   `yaml:"min_user_delay"`
	MaxUserDelay   string   `yaml:"max_user_delay"`
}

// Default returns the configuration used when a field is absent from the
// file. Usernames have no default; a config without them is unusable.
func Default() *Config {
	return &Config{
		OutputDir:      "feeds",
		SelectorsPath:  "letterboxd.selectors.json",
		CachePath:      "letterboxd-ids-cache.json",
		StatusDB:       "watchfeed-status.db",
		RequestSpacing: 2 * time.Second,
		MinUserDelay:   3 * time.Second,
		MaxUserDelay:   6 * time.Second,
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := Default()
	cfg.Usernames = file.Usernames
	if file.OutputDir != "" {
		cfg.OutputDir = file.OutputDir
	}
	if file.SelectorsPath != "" {
		cfg.SelectorsPath = file.SelectorsPath
	}
	if file.CachePath != "" {
		cfg.CachePath = file.CachePath
	}
	if file.StatusDB != "" {
		cfg.StatusDB = file.StatusDB
	}

	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{file.RequestSpacing, "request_spacing", &cfg.RequestSpacing},
		{file.CacheTTL, "cache_ttl", &cfg.CacheTTL},
		{file.MinUserDelay, "min_user_delay", &cfg.MinUserDelay},
		{file.MaxUserDelay, "max_user_delay", &cfg.MaxUserDelay},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	if len(cfg.Usernames) == 0 {
		return nil, fmt.Errorf("no usernames configured in %s", path)
	}
	if cfg.MaxUserDelay < cfg.MinUserDelay {
		return nil, fmt.Errorf("max_user_delay (%s) is less than min_user_delay (%s)",
			cfg.MaxUserDelay, cfg.MinUserDelay)
	}

	return cfg, nil
}
