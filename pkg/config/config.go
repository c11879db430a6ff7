// Package config provides configuration loading and management for augplayground.
// It layers built-in defaults, an optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nested keys, e.g. AUGPLAY_BIDS__HOST_PATH sets bids.host_path.
const EnvPrefix = "AUGPLAY_"

// Config represents the application configuration
type Config struct {
	// Server parameters
	Server struct {
		// Address is the interface to bind; empty binds all interfaces
		Address string `yaml:"address" koanf:"address"`

		// Port is the HTTP listen port
		Port int `yaml:"port" koanf:"port"`

		// RequestTimeout bounds each request; zero disables the timeout
		RequestTimeout time.Duration `yaml:"request_timeout" koanf:"request_timeout"`
	} `yaml:"server" koanf:"server"`

	// BIDS browsing parameters
	BIDS struct {
		// Root is the sandboxed directory relative paths resolve against
		Root string `yaml:"root" koanf:"root"`

		// HostPath is the host-side location of Root, shown in the UI only
		HostPath string `yaml:"host_path" koanf:"host_path"`
	} `yaml:"bids" koanf:"bids"`

	// Volume store parameters
	Store struct {
		// Capacity is the maximum number of stored volumes; zero is unbounded
		Capacity int `yaml:"capacity" koanf:"capacity"`

		// TTL expires volumes after this long; zero never expires
		TTL time.Duration `yaml:"ttl" koanf:"ttl"`
	} `yaml:"store" koanf:"store"`

	// Upload parameters
	Upload struct {
		// MaxBytes caps multipart upload bodies
		MaxBytes int64 `yaml:"max_bytes" koanf:"max_bytes"`

		// TempDir is where uploads are spilled when in-memory parsing fails
		TempDir string `yaml:"temp_dir" koanf:"temp_dir"`
	} `yaml:"upload" koanf:"upload"`

	// Render parameters
	Render struct {
		// Workers is the number of goroutines used for slice sequences
		Workers int `yaml:"workers" koanf:"workers"`
	} `yaml:"render" koanf:"render"`

	// Logging parameters
	Log struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level" koanf:"level"`
	} `yaml:"log" koanf:"log"`

	// Telemetry parameters
	Telemetry struct {
		// Enabled turns on OpenTelemetry tracing to stdout
		Enabled bool `yaml:"enabled" koanf:"enabled"`

		// ServiceName is reported on every span
		ServiceName string `yaml:"service_name" koanf:"service_name"`
	} `yaml:"telemetry" koanf:"telemetry"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default server parameters
	cfg.Server.Port = 8000
	cfg.Server.RequestTimeout = 0

	// Set default BIDS parameters
	cfg.BIDS.Root = "/data/bids"

	// Nothing expires unless configured
	cfg.Store.Capacity = 0
	cfg.Store.TTL = 0

	// Set default upload parameters
	cfg.Upload.MaxBytes = 1 << 30
	cfg.Upload.TempDir = os.TempDir()

	cfg.Render.Workers = runtime.NumCPU()

	cfg.Log.Level = "info"

	cfg.Telemetry.Enabled = false
	cfg.Telemetry.ServiceName = "augplayground"

	return cfg
}

// LoadConfig loads configuration from a YAML file and the environment.
// A missing file is not an error; defaults and environment still apply.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), kyaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Load environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	// Unprefixed BIDS_ROOT and BIDS_HOST_PATH are honoured for compatibility
	if err := k.Load(env.Provider("BIDS_", ".", func(s string) string {
		return "bids." + strings.ToLower(strings.TrimPrefix(s, "BIDS_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Store.Capacity < 0 {
		return fmt.Errorf("store capacity must be non-negative, got %d", c.Store.Capacity)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store ttl must be non-negative, got %s", c.Store.TTL)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	if c.Render.Workers <= 0 {
		c.Render.Workers = 1
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
