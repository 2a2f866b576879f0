package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/visiona/framecast/internal/capture"
)

// Config represents the complete framecast configuration
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Camera   capture.CameraConfig `yaml:"camera"`
	Stream   StreamConfig         `yaml:"stream"`
	Snapshot SnapshotConfig       `yaml:"snapshot"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Listen           string `yaml:"listen"`
	ShutdownTimeoutS int    `yaml:"shutdown_timeout_s"`
}

// StreamConfig contains capture loop settings
type StreamConfig struct {
	FPS                    int `yaml:"fps"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures"`
}

// SnapshotConfig contains single-frame endpoint settings
type SnapshotConfig struct {
	TimeoutS   int `yaml:"timeout_s"`
	CacheTTLMS int `yaml:"cache_ttl_ms"`
}

// Load reads, parses and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// ShutdownTimeout returns the graceful shutdown budget as a Duration
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutS) * time.Second
}

// FrameInterval returns the minimum time between two capture pulls
func (c *Config) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.Stream.FPS)
}

// SnapshotTimeout returns the per-request snapshot deadline
func (c *Config) SnapshotTimeout() time.Duration {
	return time.Duration(c.Snapshot.TimeoutS) * time.Second
}

// SnapshotCacheTTL returns how long an encoded snapshot stays servable
// without a new device read
func (c *Config) SnapshotCacheTTL() time.Duration {
	return time.Duration(c.Snapshot.CacheTTLMS) * time.Millisecond
}
