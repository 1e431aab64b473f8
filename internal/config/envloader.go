package config

import (
	"fmt"
	"strconv"
	"strings"
)

// envVar binds one DIFUTIL_* variable to a config key.
type envVar struct {
	name  string
	key   string // config file key, for error messages
	apply func(c *Config, value string) error
}

var envVars = []envVar{
	{"DIFUTIL_LOG_LEVEL", "log.level", setString(func(c *Config) *string { return &c.Log.Level })},
	{"DIFUTIL_LOG_FORMAT", "log.format", setString(func(c *Config) *string { return &c.Log.Format })},
	{"DIFUTIL_SEARCH_ARCHIVES", "discovery.search_archives", setBool(func(c *Config) *bool { return &c.Discovery.SearchArchives })},
	{"DIFUTIL_STRICT", "discovery.strict", setBool(func(c *Config) *bool { return &c.Discovery.Strict })},
	{"DIFUTIL_WORKERS", "discovery.workers", setInt(func(c *Config) *int { return &c.Discovery.Workers })},
	{"DIFUTIL_CACHE_SIZE", "discovery.cache_size", setInt(func(c *Config) *int { return &c.Discovery.CacheSize })},
	{"DIFUTIL_TEMP_DIR", "discovery.temp_dir", setString(func(c *Config) *string { return &c.Discovery.TempDir })},
	{"DIFUTIL_DSYMUTIL", "symbol_maps.tool", setString(func(c *Config) *string { return &c.SymbolMap.Tool })},
	{"DIFUTIL_SYMBOLMAP_DIR", "symbol_maps.work_dir", setString(func(c *Config) *string { return &c.SymbolMap.WorkDir })},
}

// ApplyEnv overrides cfg with the DIFUTIL_* variables visible through lookup
// and returns the names it applied. Unset and empty variables are ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) ([]string, error) {
	var applied []string
	for _, v := range envVars {
		value, ok := lookup(v.name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if err := v.apply(cfg, strings.TrimSpace(value)); err != nil {
			return applied, fmt.Errorf("config: %s (%s): %w", v.name, v.key, err)
		}
		applied = append(applied, v.name)
	}
	return applied, nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, value string) error {
		*field(c) = value
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		*field(c) = b
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer %q", value)
		}
		*field(c) = n
		return nil
	}
}
