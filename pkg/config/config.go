// Package config loads direxpo settings from defaults, an optional config file, a .env
// file, DIREXPO_* environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. DIREXPO_SERVER_ADDR.
const EnvPrefix = "DIREXPO"

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	OutputDir        string  `mapstructure:"output_dir"`
	DefaultMaxSizeMb float64 `mapstructure:"default_max_size_mb"`
}

// DiscoveryConfig holds settings for unattended file discovery.
type DiscoveryConfig struct {
	RespectGitignore bool `mapstructure:"respect_gitignore"`
	CacheSize        int  `mapstructure:"cache_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Debug bool `mapstructure:"debug"`
}

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Export    ExportConfig    `mapstructure:"export"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Log       LogConfig       `mapstructure:"log"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "127.0.0.1:5199")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("export.output_dir", ".output")
	v.SetDefault("export.default_max_size_mb", 50)
	v.SetDefault("discovery.respect_gitignore", true)
	v.SetDefault("discovery.cache_size", 64)
	v.SetDefault("log.debug", false)
}

// BindFlags maps command-line flags onto config keys. Flags missing from flags are
// ignored.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"server.addr":                 "addr",
		"export.output_dir":           "output-dir",
		"export.default_max_size_mb":  "max-size-mb",
		"discovery.respect_gitignore": "gitignore",
		"log.debug":                   "debug",
	}
	for key, flag := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
		}
	}
	return nil
}

// Load reads the configuration into a Config. cfgFile may be empty, in which case
// direxpo.{yaml,toml,json} is looked up in the working directory and ignored when absent.
// envFile names the dotenv file to load first; a missing file is not an error.
func Load(v *viper.Viper, cfgFile, envFile string) (*Config, error) {
	if envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("direxpo")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(cfg.Export.OutputDir); err == nil {
		cfg.Export.OutputDir = abs
	}
	return &cfg, nil
}

// Validate checks values that would make the server unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if strings.TrimSpace(c.Export.OutputDir) == "" {
		return errors.New("export.output_dir must not be empty")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Discovery.CacheSize <= 0 {
		return fmt.Errorf("discovery.cache_size must be positive, got %d", c.Discovery.CacheSize)
	}
	return nil
}
