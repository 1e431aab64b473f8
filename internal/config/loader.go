package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// EnvConfig names the config file, overriding the default location.
	EnvConfig = "DIFUTIL_CONFIG"

	defaultDir  = ".difutil"
	configFile  = "config.yaml"
	dotEnvFile  = ".env"
	fallbackDir = "/tmp/difutil-fallback"
)

// Loader locates and reads the configuration.
type Loader struct {
	// Path is the YAML file; a missing file means defaults.
	Path string
	// EnvFile is loaded into the environment before overrides are applied.
	// Variables already set in the environment win. Empty disables it.
	EnvFile string
}

// NewLoader resolves the config path from $DIFUTIL_CONFIG, falling back to
// ~/.difutil/config.yaml.
func NewLoader() *Loader {
	l := &Loader{EnvFile: dotEnvFile}
	if p := os.Getenv(EnvConfig); p != "" {
		l.Path = p
		return l
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = fallbackDir
	}
	l.Path = filepath.Join(home, defaultDir, configFile)
	return l
}

// Load returns defaults overlaid with the config file, then the environment.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.Path != "" {
		//nolint:gosec // G304: path comes from the user's own environment.
		data, err := os.ReadFile(l.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", l.Path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", l.Path, err)
			}
		}
	}

	if l.EnvFile != "" {
		if err := godotenv.Load(l.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", l.EnvFile, err)
		}
	}
	if _, err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
