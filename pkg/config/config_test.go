package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5199", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 50.0, cfg.Export.DefaultMaxSizeMb)
	assert.True(t, cfg.Discovery.RespectGitignore)
	assert.Equal(t, 64, cfg.Discovery.CacheSize)
	assert.False(t, cfg.Log.Debug)
	assert.True(t, filepath.IsAbs(cfg.Export.OutputDir))
	assert.Equal(t, ".output", filepath.Base(cfg.Export.OutputDir))
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "direxpo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  shutdown_timeout: 3s
export:
  output_dir: /tmp/exports
  default_max_size_mb: 2.5
`), 0o644))

	cfg, err := Load(viper.New(), path, "")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 2.5, cfg.Export.DefaultMaxSizeMb)
	assert.Equal(t, filepath.Clean("/tmp/exports"), cfg.Export.OutputDir)
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DIREXPO_SERVER_ADDR", "0.0.0.0:7000")
	t.Setenv("DIREXPO_LOG_DEBUG", "true")

	cfg, err := Load(viper.New(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7000", cfg.Server.Addr)
	assert.True(t, cfg.Log.Debug)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DIREXPO_DISCOVERY_CACHE_SIZE=8\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("DIREXPO_DISCOVERY_CACHE_SIZE") })

	cfg, err := Load(viper.New(), "", envFile)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Discovery.CacheSize)
}

func TestLoadMissingDotEnvIsFine(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load(viper.New(), "", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestFlagsOverrideEverything(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DIREXPO_SERVER_ADDR", "0.0.0.0:7000")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("addr", "", "")
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--addr", "localhost:1234"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, flags))
	cfg, err := Load(v, "", "")
	require.NoError(t, err)
	assert.Equal(t, "localhost:1234", cfg.Server.Addr)
	assert.False(t, cfg.Log.Debug)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Server:    ServerConfig{Addr: ":1", ShutdownTimeout: time.Second},
		Export:    ExportConfig{OutputDir: "out"},
		Discovery: DiscoveryConfig{CacheSize: 1},
	}
	require.NoError(t, valid.Validate())

	noAddr := valid
	noAddr.Server.Addr = " "
	assert.Error(t, noAddr.Validate())

	noTimeout := valid
	noTimeout.Server.ShutdownTimeout = 0
	assert.Error(t, noTimeout.Validate())

	noCache := valid
	noCache.Discovery.CacheSize = 0
	assert.Error(t, noCache.Validate())
}
