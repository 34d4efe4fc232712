// Package config defines the FireScope configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Capture   CaptureConfig   `yaml:"capture" mapstructure:"capture"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Host string `yaml:"host" mapstructure:"host"`
}

// CaptureConfig holds the capture pipeline configuration
type CaptureConfig struct {
	APIHost     string `yaml:"apiHost" mapstructure:"apiHost"`         // Host whose traffic is decoded
	UpstreamURL string `yaml:"upstreamURL" mapstructure:"upstreamURL"` // Where the capture proxy forwards
	BrowserURL  string `yaml:"browserURL" mapstructure:"browserURL"`   // DevTools websocket URL, empty disables browser capture

	MaxPendingAge time.Duration `yaml:"maxPendingAge" mapstructure:"maxPendingAge"`
	SweepInterval time.Duration `yaml:"sweepInterval" mapstructure:"sweepInterval"`
}

// StorageConfig holds record history configuration
type StorageConfig struct {
	Type       string `yaml:"type" mapstructure:"type"` // "memory" or "sqlite"
	Path       string `yaml:"path" mapstructure:"path"` // Database file for sqlite storage
	MaxRecords int    `yaml:"maxRecords" mapstructure:"maxRecords"`
}

// ResolverConfig holds console link resolution configuration
type ResolverConfig struct {
	Type      string        `yaml:"type" mapstructure:"type"` // "local" or "remote"
	BaseURL   string        `yaml:"baseURL" mapstructure:"baseURL"`
	APIKey    string        `yaml:"apiKey" mapstructure:"apiKey"`
	CacheTTL  time.Duration `yaml:"cacheTTL" mapstructure:"cacheTTL"`
	Cache     string        `yaml:"cache" mapstructure:"cache"` // "memory" or "redis"
	RedisAddr string        `yaml:"redisAddr" mapstructure:"redisAddr"`
}

// TransportConfig holds listener transport configuration
type TransportConfig struct {
	Heartbeat            time.Duration `yaml:"heartbeat" mapstructure:"heartbeat"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts" mapstructure:"maxReconnectAttempts"`
	ReconnectDelay       time.Duration `yaml:"reconnectDelay" mapstructure:"reconnectDelay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Capture: CaptureConfig{
			APIHost:       "firestore.googleapis.com",
			UpstreamURL:   "https://firestore.googleapis.com",
			MaxPendingAge: 5 * time.Minute,
			SweepInterval: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type:       "memory",
			Path:       "./data/records.db",
			MaxRecords: 1000,
		},
		Resolver: ResolverConfig{
			Type:      "local",
			CacheTTL:  24 * time.Hour,
			Cache:     "memory",
			RedisAddr: "localhost:6379",
		},
		Transport: TransportConfig{
			Heartbeat:            30 * time.Second,
			MaxReconnectAttempts: 3,
			ReconnectDelay:       time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks option values that cannot be defaulted
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	switch c.Resolver.Type {
	case "local":
	case "remote":
		if c.Resolver.BaseURL == "" {
			return fmt.Errorf("resolver.baseURL is required for the remote resolver")
		}
	default:
		return fmt.Errorf("unknown resolver.type %q", c.Resolver.Type)
	}
	if c.Resolver.Cache != "memory" && c.Resolver.Cache != "redis" {
		return fmt.Errorf("unknown resolver.cache %q", c.Resolver.Cache)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("unknown logging.format %q", c.Logging.Format)
	}
	return nil
}
