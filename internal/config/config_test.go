package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	l := &Loader{Path: filepath.Join(t.TempDir(), "absent.yaml")}
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.True(t, cfg.Discovery.SearchArchives)
	assert.Equal(t, runtime.NumCPU(), cfg.Discovery.Workers)
	assert.Equal(t, "dsymutil", cfg.SymbolMap.Tool)
}

func TestLoadFilePartial(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
discovery:
  search_archives: false
  workers: 3
symbol_maps:
  work_dir: /var/tmp/maps
`)
	cfg, err := (&Loader{Path: path}).Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format, "unset keys keep defaults")
	assert.False(t, cfg.Discovery.SearchArchives)
	assert.Equal(t, 3, cfg.Discovery.Workers)
	assert.Equal(t, "dsymutil", cfg.SymbolMap.Tool)
	assert.Equal(t, "/var/tmp/maps", cfg.SymbolMap.WorkDir)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "discovery:\n  workers: 3\n  strict: false\n")
	t.Setenv("DIFUTIL_WORKERS", "5")
	t.Setenv("DIFUTIL_STRICT", "true")
	t.Setenv("DIFUTIL_LOG_FORMAT", "json")

	cfg, err := (&Loader{Path: path}).Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Discovery.Workers)
	assert.True(t, cfg.Discovery.Strict)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DIFUTIL_SYMBOLMAP_DIR=/from/dotenv\nDIFUTIL_CACHE_SIZE=7\n"), 0o644))
	t.Setenv("DIFUTIL_CACHE_SIZE", "9")
	require.NoError(t, os.Unsetenv("DIFUTIL_SYMBOLMAP_DIR"))
	t.Cleanup(func() { os.Unsetenv("DIFUTIL_SYMBOLMAP_DIR") })

	cfg, err := (&Loader{Path: filepath.Join(dir, "absent.yaml"), EnvFile: envFile}).Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.SymbolMap.WorkDir)
	assert.Equal(t, 9, cfg.Discovery.CacheSize, "real environment wins over .env")
}

func TestLoadErrors(t *testing.T) {
	_, err := (&Loader{Path: writeConfig(t, "log: [unclosed\n")}).Load()
	assert.ErrorContains(t, err, "config: parse")

	_, err = (&Loader{Path: writeConfig(t, "log:\n  level: loud\n")}).Load()
	assert.ErrorContains(t, err, "log.level")

	t.Setenv("DIFUTIL_WORKERS", "many")
	_, err = (&Loader{Path: writeConfig(t, "")}).Load()
	assert.ErrorContains(t, err, "DIFUTIL_WORKERS")
}

func TestNewLoaderPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/difutil.yaml")
	assert.Equal(t, "/etc/difutil.yaml", NewLoader().Path)

	t.Setenv(EnvConfig, "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	assert.Equal(t, filepath.Join(home, ".difutil", "config.yaml"), NewLoader().Path)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Discovery.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Log.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DIFUTIL_SEARCH_ARCHIVES": "false",
		"DIFUTIL_DSYMUTIL":        " /opt/xcode/dsymutil ",
		"DIFUTIL_TEMP_DIR":        "",
		"UNRELATED":               "x",
	}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}

	cfg := Default()
	applied, err := ApplyEnv(cfg, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"DIFUTIL_SEARCH_ARCHIVES", "DIFUTIL_DSYMUTIL"}, applied)
	assert.False(t, cfg.Discovery.SearchArchives)
	assert.Equal(t, "/opt/xcode/dsymutil", cfg.SymbolMap.Tool)
	assert.Empty(t, cfg.Discovery.TempDir)

	env["DIFUTIL_STRICT"] = "sometimes"
	_, err = ApplyEnv(Default(), lookup)
	assert.EqualError(t, err, `config: DIFUTIL_STRICT (discovery.strict): invalid boolean "sometimes"`)
}
