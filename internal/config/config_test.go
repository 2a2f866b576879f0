package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "framecast.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "camera:\n  source: \"0\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Listen != "0.0.0.0:8000" {
		t.Errorf("expected default listen address, got %q", cfg.Server.Listen)
	}
	if cfg.Stream.FPS != 30 {
		t.Errorf("expected default fps 30, got %d", cfg.Stream.FPS)
	}
	if cfg.Stream.MaxConsecutiveFailures != 1 {
		t.Errorf("expected default failure threshold 1, got %d", cfg.Stream.MaxConsecutiveFailures)
	}
	if cfg.Camera.Width != 1920 || cfg.Camera.Height != 1080 {
		t.Errorf("expected default 1920x1080, got %dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if got := cfg.FrameInterval(); got != time.Second/30 {
		t.Errorf("expected frame interval %v, got %v", time.Second/30, got)
	}
	if got := cfg.SnapshotCacheTTL(); got != 500*time.Millisecond {
		t.Errorf("expected snapshot cache TTL 500ms, got %v", got)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: "127.0.0.1:9000"
  shutdown_timeout_s: 2
camera:
  source: "rtsp://cam.local/stream"
  width: 1280
  height: 720
stream:
  fps: 15
  max_consecutive_failures: 5
snapshot:
  timeout_s: 3
  cache_ttl_ms: 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Camera.Source != "rtsp://cam.local/stream" {
		t.Errorf("unexpected source %q", cfg.Camera.Source)
	}
	if cfg.Stream.FPS != 15 {
		t.Errorf("expected fps 15, got %d", cfg.Stream.FPS)
	}
	if cfg.ShutdownTimeout() != 2*time.Second {
		t.Errorf("expected 2s shutdown timeout, got %v", cfg.ShutdownTimeout())
	}
	if cfg.SnapshotTimeout() != 3*time.Second {
		t.Errorf("expected 3s snapshot timeout, got %v", cfg.SnapshotTimeout())
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing source", "server:\n  listen: \"0.0.0.0:8000\"\n"},
		{"bad listen", "camera:\n  source: \"0\"\nserver:\n  listen: \"no-port\"\n"},
		{"fps out of range", "camera:\n  source: \"0\"\nstream:\n  fps: 500\n"},
		{"negative width", "camera:\n  source: \"0\"\n  width: -1\n"},
		{"negative cache ttl", "camera:\n  source: \"0\"\nsnapshot:\n  cache_ttl_ms: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected %s to be rejected", tt.name)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "camera: [not a map\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
