// Package config loads difutil settings from a YAML file, a .env file and
// DIFUTIL_* environment variables, in increasing order of precedence.
// Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config holds all settings.
type Config struct {
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	SymbolMap SymbolMapConfig `yaml:"symbol_maps"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // auto, console or json
}

// DiscoveryConfig controls bulk discovery.
type DiscoveryConfig struct {
	SearchArchives bool   `yaml:"search_archives"`
	Strict         bool   `yaml:"strict"`
	Workers        int    `yaml:"workers"`
	CacheSize      int    `yaml:"cache_size"`
	TempDir        string `yaml:"temp_dir"`
}

// SymbolMapConfig controls hidden-symbol resolution.
type SymbolMapConfig struct {
	Tool    string `yaml:"tool"`
	WorkDir string `yaml:"work_dir"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Discovery: DiscoveryConfig{
			SearchArchives: true,
			Workers:        runtime.NumCPU(),
			CacheSize:      1024,
		},
		SymbolMap: SymbolMapConfig{
			Tool: "dsymutil",
		},
	}
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error"}
	logFormats = []string{"auto", "console", "json"}
)

// Validate checks field values.
func (c *Config) Validate() error {
	if !contains(logLevels, strings.ToLower(c.Log.Level)) {
		return fmt.Errorf("config: log.level %q must be one of %s", c.Log.Level, strings.Join(logLevels, ", "))
	}
	if !contains(logFormats, strings.ToLower(c.Log.Format)) {
		return fmt.Errorf("config: log.format %q must be one of %s", c.Log.Format, strings.Join(logFormats, ", "))
	}
	if c.Discovery.Workers < 0 {
		return fmt.Errorf("config: discovery.workers must not be negative, got %d", c.Discovery.Workers)
	}
	if c.Discovery.CacheSize < 0 {
		return fmt.Errorf("config: discovery.cache_size must not be negative, got %d", c.Discovery.CacheSize)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
