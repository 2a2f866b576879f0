package config

import (
	"fmt"
	"net"
)

const (
	defaultListen           = "0.0.0.0:8000"
	defaultShutdownTimeoutS = 5
	defaultFPS              = 30
	defaultMaxFailures      = 1
	defaultSnapshotTimeoutS = 5
	defaultCacheTTLMS       = 500
	defaultWidth            = 1920
	defaultHeight           = 1080
)

// Validate checks the configuration and fills defaults in place
func Validate(cfg *Config) error {
	if cfg.Camera.Source == "" {
		return fmt.Errorf("camera.source is required (device index or stream URL)")
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera dimensions must be non-negative")
	}
	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = defaultWidth
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = defaultHeight
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaultListen
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		return fmt.Errorf("server.listen must be host:port: %w", err)
	}
	if cfg.Server.ShutdownTimeoutS < 0 {
		return fmt.Errorf("server.shutdown_timeout_s must be >= 0")
	}
	if cfg.Server.ShutdownTimeoutS == 0 {
		cfg.Server.ShutdownTimeoutS = defaultShutdownTimeoutS
	}

	if cfg.Stream.FPS < 0 || cfg.Stream.FPS > 120 {
		return fmt.Errorf("stream.fps must be 1-120, got %d", cfg.Stream.FPS)
	}
	if cfg.Stream.FPS == 0 {
		cfg.Stream.FPS = defaultFPS
	}
	if cfg.Stream.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("stream.max_consecutive_failures must be >= 0")
	}
	if cfg.Stream.MaxConsecutiveFailures == 0 {
		cfg.Stream.MaxConsecutiveFailures = defaultMaxFailures
	}

	if cfg.Snapshot.TimeoutS < 0 {
		return fmt.Errorf("snapshot.timeout_s must be >= 0")
	}
	if cfg.Snapshot.TimeoutS == 0 {
		cfg.Snapshot.TimeoutS = defaultSnapshotTimeoutS
	}
	if cfg.Snapshot.CacheTTLMS < 0 {
		return fmt.Errorf("snapshot.cache_ttl_ms must be >= 0")
	}
	if cfg.Snapshot.CacheTTLMS == 0 {
		cfg.Snapshot.CacheTTLMS = defaultCacheTTLMS
	}

	return nil
}
