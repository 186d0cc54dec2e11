// Package config loads converter settings from a TOML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"utm-converter/export"
)

type Config struct {
	// Channels is the number of decoder channels in the pool.
	Channels        int    `toml:"channels"`
	Format          string `toml:"format"`
	OutputDir       string `toml:"output_dir"`
	Catalog         string `toml:"catalog"`
	MetricsTextfile string `toml:"metrics_textfile"`
	LogLevel        string `toml:"log_level"`

	LegacyRawFixLongitude bool `toml:"legacy_raw_fix_longitude"`
}

func Default() Config {
	return Config{
		Channels: 16,
		Format:   "gutma",
		LogLevel: "info",
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if cfg.Channels < 1 {
		return fmt.Errorf("channels must be at least 1, got %d", cfg.Channels)
	}
	if _, err := export.Lookup(cfg.Format); err != nil {
		return err
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}
	return nil
}
