package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Writing config failed: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.RunTimeoutSeconds != 300 {
		t.Errorf("Expected default run timeout 300, got %v", cfg.Pipeline.RunTimeoutSeconds)
	}
	if cfg.Storage.DatabasePath == "" || cfg.Storage.ScreenshotsDir == "" {
		t.Error("Expected derived storage paths to be filled")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
pipeline:
  frame_timeout_seconds: 5
  frame_skip: 2
  nms_threshold: 0.3
  classes:
    pedestrian:
      min_confidence: 0.35
models:
  default: custom-model
  mock_enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Pipeline.FrameSkip != 2 {
		t.Errorf("Expected frame_skip 2, got %d", cfg.Pipeline.FrameSkip)
	}
	if !cfg.Models.MockEnabled {
		t.Error("Expected mock_enabled true")
	}

	table := cfg.PolicyTable()
	if got := table.Lookup("pedestrian").MinConfidence; got != 0.35 {
		t.Errorf("Expected configured pedestrian minimum 0.35, got %v", got)
	}
	// Untouched built-in classes survive the overlay.
	if got := table.Lookup("vehicle").MinConfidence; got != 0.5 {
		t.Errorf("Expected built-in vehicle minimum 0.5, got %v", got)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad port", "server:\n  port: -1\n"},
		{"bad frame timeout", "pipeline:\n  frame_timeout_seconds: 0\n"},
		{"bad nms", "pipeline:\n  nms_threshold: 1.5\n"},
		{"bad class confidence", "pipeline:\n  classes:\n    pedestrian:\n      min_confidence: 2\n"},
	}

	for _, tt := range tests {
		path := writeConfig(t, tt.content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestPipelineDefaults(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.FrameTimeoutSeconds = 2.5

	d := cfg.PipelineDefaults()
	if d.FrameTimeout != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s frame timeout, got %v", d.FrameTimeout)
	}
	if d.RunTimeout != 300*time.Second {
		t.Errorf("Expected 300s run timeout, got %v", d.RunTimeout)
	}
}

func TestWatchReload(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan *Config, 1)
	cfg.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	stop, err := cfg.Watch()
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0644); err != nil {
		t.Fatalf("Rewriting config failed: %v", err)
	}

	select {
	case c := <-changed:
		if c.Server.Port != 9001 {
			t.Errorf("Expected reloaded port 9001, got %d", c.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for config reload")
	}
}
