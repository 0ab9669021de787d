// Package config provides configuration management for the detection
// service: YAML loading with defaults, validation, and hot reload.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/framesight/framesight/internal/detection"
	"github.com/framesight/framesight/internal/pipeline"
)

// Config is the root service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Models   ModelsConfig   `yaml:"models"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Internal fields
	mu       sync.RWMutex    `yaml:"-"`
	path     string          `yaml:"-"`
	watchers []func(*Config) `yaml:"-"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds filesystem and database locations.
type StorageConfig struct {
	DataDir        string `yaml:"data_dir"`
	DatabasePath   string `yaml:"database_path"`   // default: <data_dir>/framesight.db
	ScreenshotsDir string `yaml:"screenshots_dir"` // default: <data_dir>/screenshots
}

// PipelineConfig holds the pipeline tuning owned by the core.
type PipelineConfig struct {
	FrameTimeoutSeconds float64                          `yaml:"frame_timeout_seconds"`
	RunTimeoutSeconds   float64                          `yaml:"run_timeout_seconds"`
	FrameSkip           int                              `yaml:"frame_skip"`
	NMSThreshold        float64                          `yaml:"nms_threshold"`
	DisableFallback     bool                             `yaml:"disable_fallback"`
	ScreenshotQuality   int                              `yaml:"screenshot_quality"`
	InputWidth          int                              `yaml:"input_width"`
	InputHeight         int                              `yaml:"input_height"`
	Classes             map[string]detection.ClassPolicy `yaml:"classes"`
	DefaultPolicy       *detection.ClassPolicy           `yaml:"default_policy"`
}

// ModelsConfig holds model registration settings.
type ModelsConfig struct {
	Default string `yaml:"default"`
	// MockEnabled registers the deterministic mock model as an
	// explicitly selectable model. It is never substituted silently.
	MockEnabled bool `yaml:"mock_enabled"`
}

// EventsConfig holds embedded event bus settings.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Pipeline: PipelineConfig{
			FrameTimeoutSeconds: 15,
			RunTimeoutSeconds:   300,
			FrameSkip:           0,
			NMSThreshold:        0.45,
			ScreenshotQuality:   85,
			InputWidth:          640,
			InputHeight:         640,
		},
		Models: ModelsConfig{Default: "heuristic-v1"},
		Events: EventsConfig{Enabled: true, Host: "127.0.0.1", Port: 12002},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the config file at path, merging it over the defaults. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Default().Info("Config file not found, using defaults", "path", path)
			cfg.applyDerived()
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDerived fills locations derived from DataDir when unset.
func (c *Config) applyDerived() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = filepath.Join(c.Storage.DataDir, "framesight.db")
	}
	if c.Storage.ScreenshotsDir == "" {
		c.Storage.ScreenshotsDir = filepath.Join(c.Storage.DataDir, "screenshots")
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Pipeline.FrameTimeoutSeconds <= 0 {
		return fmt.Errorf("frame_timeout_seconds must be positive, got %v", c.Pipeline.FrameTimeoutSeconds)
	}
	if c.Pipeline.RunTimeoutSeconds <= 0 {
		return fmt.Errorf("run_timeout_seconds must be positive, got %v", c.Pipeline.RunTimeoutSeconds)
	}
	if c.Pipeline.FrameSkip < 0 {
		return fmt.Errorf("frame_skip must be >= 0, got %d", c.Pipeline.FrameSkip)
	}
	if c.Pipeline.NMSThreshold < 0 || c.Pipeline.NMSThreshold > 1 {
		return fmt.Errorf("nms_threshold must be in [0,1], got %v", c.Pipeline.NMSThreshold)
	}
	for label, p := range c.Pipeline.Classes {
		if p.MinConfidence < 0 || p.MinConfidence > 1 {
			return fmt.Errorf("class %q: min_confidence must be in [0,1], got %v", label, p.MinConfidence)
		}
	}
	return nil
}

// PolicyTable builds the detection policy table: the built-in defaults
// overlaid with any configured per-class policies.
func (c *Config) PolicyTable() detection.PolicyTable {
	table := detection.DefaultPolicies()
	for label, p := range c.Pipeline.Classes {
		table.Classes[label] = p
	}
	if c.Pipeline.DefaultPolicy != nil {
		table.Default = *c.Pipeline.DefaultPolicy
	}
	return table
}

// PipelineDefaults converts the pipeline tuning into process-wide
// pipeline settings.
func (c *Config) PipelineDefaults() pipeline.Defaults {
	return pipeline.Defaults{
		FrameTimeout:    time.Duration(c.Pipeline.FrameTimeoutSeconds * float64(time.Second)),
		RunTimeout:      time.Duration(c.Pipeline.RunTimeoutSeconds * float64(time.Second)),
		FrameSkip:       c.Pipeline.FrameSkip,
		NMSThreshold:    c.Pipeline.NMSThreshold,
		DisableFallback: c.Pipeline.DisableFallback,
	}
}

// OnChange registers a callback invoked after a successful reload.
func (c *Config) OnChange(fn func(*Config)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Watch starts watching the config file for changes. Returns a stop
// function. Reload failures keep the previous configuration.
func (c *Config) Watch() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	logger := slog.Default().With("component", "config")
	done := make(chan struct{})

	go func() {
		// Editors often produce bursts of writes; debounce them.
		var timer *time.Timer
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(200*time.Millisecond, func() {
					c.reload(logger)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Config watcher error", "error", err)
			}
		}
	}()

	stop := func() {
		close(done)
		watcher.Close()
	}
	return stop, nil
}

func (c *Config) reload(logger *slog.Logger) {
	fresh, err := Load(c.path)
	if err != nil {
		logger.Error("Config reload failed, keeping previous configuration", "error", err)
		return
	}

	c.mu.Lock()
	c.Server = fresh.Server
	c.Storage = fresh.Storage
	c.Pipeline = fresh.Pipeline
	c.Models = fresh.Models
	c.Events = fresh.Events
	c.Logging = fresh.Logging
	watchers := append(([]func(*Config))(nil), c.watchers...)
	c.mu.Unlock()

	logger.Info("Configuration reloaded", "path", c.path)
	for _, fn := range watchers {
		fn(c)
	}
}
