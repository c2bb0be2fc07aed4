package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	FileStorage FileStorageConfig `yaml:"file_storage"`
	Worker      WorkerConfig      `yaml:"worker"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// FileStorageConfig contains S3-compatible object storage settings.
// Empty bucket disables object storage (metadata-only mode).
type FileStorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
	UseSSL    *bool  `yaml:"use_ssl"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	UsageRecomputeInterval Duration `yaml:"usage_recompute_interval"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("VOUCH_CONFIG_PATH", "config/vouch.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/vouch.db",
		},
		Worker: WorkerConfig{
			UsageRecomputeInterval: Duration(1 * time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("VOUCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VOUCH_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VOUCH_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VOUCH_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("VOUCH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("VOUCH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// File storage
	if v := os.Getenv("VOUCH_S3_ENDPOINT"); v != "" {
		cfg.FileStorage.Endpoint = v
	}
	if v := os.Getenv("VOUCH_S3_BUCKET"); v != "" {
		cfg.FileStorage.Bucket = v
	}
	if v := os.Getenv("VOUCH_S3_REGION"); v != "" {
		cfg.FileStorage.Region = v
	}
	if v := os.Getenv("VOUCH_S3_ACCESS_KEY"); v != "" {
		cfg.FileStorage.AccessKey = v
	}
	if v := os.Getenv("VOUCH_S3_SECRET_KEY"); v != "" {
		cfg.FileStorage.SecretKey = v
	}
	if v := os.Getenv("VOUCH_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.FileStorage.UseSSL = &useSSL
	}

	// Worker
	if v := os.Getenv("VOUCH_USAGE_RECOMPUTE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.UsageRecomputeInterval = Duration(d)
		}
	}

	// Log
	if v := os.Getenv("VOUCH_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VOUCH_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (VOUCH_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("VOUCH_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("VOUCH_API_KEY is required")
	}
	if c.FileStorage.Bucket != "" {
		if c.FileStorage.Endpoint == "" {
			return errors.New("VOUCH_S3_ENDPOINT is required when a bucket is configured")
		}
		if c.FileStorage.AccessKey == "" || c.FileStorage.SecretKey == "" {
			return errors.New("VOUCH_S3_ACCESS_KEY and VOUCH_S3_SECRET_KEY are required when a bucket is configured")
		}
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
