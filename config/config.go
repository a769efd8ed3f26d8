// Package config loads and validates the YAML configuration for the
// transcription client.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration.
type Config struct {
	Relay     RelayConfig     `yaml:"relay"`
	Streaming StreamingConfig `yaml:"streaming"`
	Capture   CaptureConfig   `yaml:"capture"`
	Storage   StorageConfig   `yaml:"storage"`
	Keyring   KeyringConfig   `yaml:"keyring"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RelayConfig describes the token relay that exchanges a long-lived
// credential for a short-lived streaming token.
type RelayConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// StreamingConfig describes the remote streaming endpoint.
type StreamingConfig struct {
	URL              string `yaml:"url"`
	SampleRate       int    `yaml:"sample_rate"`
	HandshakeTimeout int    `yaml:"handshake_timeout"` // seconds
}

// CaptureConfig selects and configures the audio capture backend.
type CaptureConfig struct {
	Backend     string `yaml:"backend"`      // "native" or "bridge"
	BridgeAddr  string `yaml:"bridge_addr"`  // bridge ingest listen address
	ArtifactDir string `yaml:"artifact_dir"` // where bridge WAV exports land
}

// StorageConfig locates the key-value store backing credentials and history.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// KeyringConfig holds the default credentials seeded into an empty keyring.
// Seeds are supplied by the embedding application, never compiled in.
type KeyringConfig struct {
	Seeds []string `yaml:"seeds"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with all defaults applied and no relay or
// streaming endpoints set.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file at path, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Relay.Timeout <= 0 {
		c.Relay.Timeout = 10
	}
	if c.Streaming.SampleRate <= 0 {
		c.Streaming.SampleRate = 16000
	}
	if c.Streaming.HandshakeTimeout <= 0 {
		c.Streaming.HandshakeTimeout = 10
	}
	if c.Capture.Backend == "" {
		c.Capture.Backend = "native"
	}
	if c.Capture.BridgeAddr == "" {
		c.Capture.BridgeAddr = "127.0.0.1:8445"
	}
	if c.Capture.ArtifactDir == "" {
		c.Capture.ArtifactDir = "recordings"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "dictate.store.json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Relay.URL == "" {
		return fmt.Errorf("relay.url must be set")
	}
	if c.Streaming.URL == "" {
		return fmt.Errorf("streaming.url must be set")
	}
	if c.Streaming.SampleRate != 16000 {
		return fmt.Errorf("streaming.sample_rate must be 16000, got %d", c.Streaming.SampleRate)
	}
	if c.Capture.Backend != "native" && c.Capture.Backend != "bridge" {
		return fmt.Errorf("capture.backend must be \"native\" or \"bridge\", got %q", c.Capture.Backend)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

// RelayTimeout returns the token relay timeout as a duration.
func (c *Config) RelayTimeout() time.Duration {
	return time.Duration(c.Relay.Timeout) * time.Second
}

// HandshakeTimeout returns the streaming handshake timeout as a duration.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Streaming.HandshakeTimeout) * time.Second
}
