package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
)

// isolate clears the variables Load reads and runs the test in an empty dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvPath, EnvSysroot, EnvLogLevel, EnvCacheDir} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Chdir(dir)
	return dir
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "wspkg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(home, ".wspkg")}, cfg.SearchPath)
	assert.Equal(t, filepath.Join(home, ".wspkg", ".workcache"), cfg.CacheDir)
	assert.Equal(t, DefaultCompilerCommand, cfg.Compiler.Command)
	assert.Equal(t, DefaultSourceExt, cfg.Compiler.SourceExt)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultWatchDebounce, cfg.WatchDebounce())
}

func TestLoadFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("WS_ROOT", filepath.Join(dir, "ws"))
	p := writeConfig(t, dir, `
search_path: ["${WS_ROOT}", /opt/ws]
sysroot: /usr/local
cfgs: [feature_a]
use_path_hack: true
checkout_substitute: /tmp/sub
compiler:
  command: mycc
  source_ext: src
  opt_level: 2
  target: x86_64
watch:
  debounce: 2s
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "ws"), "/opt/ws"}, cfg.SearchPath)
	assert.Equal(t, "/usr/local", cfg.Sysroot)
	assert.Equal(t, []string{"feature_a"}, cfg.Cfgs)
	assert.True(t, cfg.UsePathHack)
	assert.Equal(t, "/tmp/sub", cfg.CheckoutSubstitute)
	assert.Equal(t, "mycc", cfg.Compiler.Command)
	assert.Equal(t, "src", cfg.Compiler.SourceExt)
	assert.Equal(t, 2, cfg.Compiler.OptLevel)
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	p := writeConfig(t, dir, "search_path: [/from/file]\nsysroot: /file\n")
	t.Setenv(EnvPath, "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv(EnvSysroot, "/env")
	t.Setenv(EnvLogLevel, "DEBUG")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, cfg.SearchPath)
	assert.Equal(t, "/env", cfg.Sysroot)
	assert.Equal(t, "debug", string(NormalizeLogLevel(string(cfg.LogLevel))))
}

func TestDotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WSPKG_SYSROOT=/dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(EnvSysroot) })
	require.NoError(t, os.Unsetenv(EnvSysroot))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dotenv", cfg.Sysroot)
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))

	tests := map[string]string{
		"unknown field":  "serach_path: [/x]\n",
		"bad opt level":  "compiler:\n  opt_level: 9\n",
		"dotted ext":     "compiler:\n  source_ext: .rs\n",
		"bad debounce":   "watch:\n  debounce: soon\n",
		"bad log level":  "log_level: loud\n",
		"duplicate root": "search_path: [/x, /x]\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, dir, content))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
		})
	}
}

func TestInit(t *testing.T) {
	dir := isolate(t)
	p := filepath.Join(dir, "conf", "wspkg.yaml")
	require.NoError(t, Init(p, false))
	require.Error(t, Init(p, false))
	require.NoError(t, Init(p, true))

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, ".wspkg")}, cfg.SearchPath)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", LogLevelDebug.SlogLevel().String())
	assert.Equal(t, "WARN", LogLevel("warning").SlogLevel().String())
	assert.Equal(t, "INFO", LogLevel("nonsense").SlogLevel().String())
}
