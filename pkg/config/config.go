// Package config loads, defaults and validates the DittoWeb configuration,
// and builds the configured resource store.
//
// Configuration sources (in order of precedence):
//  1. CLI arguments (applied by the caller after Load)
//  2. Environment variables (DITTOWEB_*)
//  3. Configuration file (YAML)
//  4. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/dittoweb/internal/server"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the complete DittoWeb configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configures the dispatcher and protocol state machine.
	// Uses the server.Config type directly to avoid duplication.
	Server server.Config `mapstructure:"server"`

	// Storage selects the resource store backend and its settings
	Storage StorageConfig `mapstructure:"storage"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// StorageConfig selects a resource store implementation.
//
// The Type field determines which backend is used; only the matching
// type-specific section is consulted.
type StorageConfig struct {
	// Type is the backend: filesystem, memory, badger or s3
	Type string `mapstructure:"type" validate:"required,oneof=filesystem memory badger s3"`

	// Filesystem options: path (web root directory)
	Filesystem map[string]any `mapstructure:"filesystem"`

	// Memory has no options; present for symmetry
	Memory map[string]any `mapstructure:"memory"`

	// Badger options: db_path, in_memory
	Badger map[string]any `mapstructure:"badger"`

	// S3 options: region, bucket, key_prefix, endpoint, access_key_id,
	// secret_access_key, max_retries
	S3 map[string]any `mapstructure:"s3"`
}

// Load reads configuration from file and environment, applies defaults and
// validates the result.
//
// An empty configPath falls back to $XDG_CONFIG_HOME/dittoweb/config.yaml;
// a missing file is not an error (defaults apply).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// DumpYAML renders the effective configuration as YAML, for -dump-config.
func (c *Config) DumpYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the DITTOWEB_ prefix with underscores,
	// e.g. DITTOWEB_SERVER_PORT=9090.
	v.SetEnvPrefix("DITTOWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine; defaults apply.
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory: XDG_CONFIG_HOME if set,
// otherwise ~/.config, falling back to the current directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittoweb")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittoweb")
}
