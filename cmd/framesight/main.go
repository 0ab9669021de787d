// Package main provides the framesight detection service entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framesight/framesight/internal/api"
	"github.com/framesight/framesight/internal/config"
	"github.com/framesight/framesight/internal/events"
	"github.com/framesight/framesight/internal/model"
	"github.com/framesight/framesight/internal/pipeline"
	"github.com/framesight/framesight/internal/screenshot"
	"github.com/framesight/framesight/internal/storage"
	"github.com/framesight/framesight/internal/video"
)

func main() {
	configPath := flag.String("config", getEnv("FRAMESIGHT_CONFIG", "./config.yaml"), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.SetupLogging(cfg.Logging)

	slog.Info("Starting framesight",
		"config_path", *configPath,
		"data_dir", cfg.Storage.DataDir,
		"api_port", cfg.Server.Port,
	)

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		slog.Error("Failed to create data directory", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Storage.ScreenshotsDir, 0755); err != nil {
		slog.Error("Failed to create screenshots directory", "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var bus *events.Bus
	if cfg.Events.Enabled {
		bus, err = events.NewBus(events.BusConfig{
			Host: cfg.Events.Host,
			Port: cfg.Events.Port,
		})
		if err != nil {
			slog.Error("Failed to start event bus", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
	}

	registry := model.NewRegistry()
	heuristic := model.NewHeuristicModelWithProcessor(
		video.NewProcessor(cfg.Pipeline.InputWidth, cfg.Pipeline.InputHeight))
	registry.Register(heuristic.Name(), heuristic)
	if cfg.Models.MockEnabled {
		mock := model.NewMockModel("mock")
		registry.Register(mock.Name(), mock)
	}
	if cfg.Models.Default != "" {
		if err := registry.SetActive(cfg.Models.Default); err != nil {
			slog.Error("Failed to activate default model", "model", cfg.Models.Default, "error", err)
			os.Exit(1)
		}
	}

	capture := screenshot.NewCapture(cfg.Storage.ScreenshotsDir, cfg.Pipeline.ScreenshotQuality)

	pipe := pipeline.New(registry, video.NewFFmpegSource(), capture)
	if err := pipe.Initialize(cfg.PolicyTable(), cfg.PipelineDefaults()); err != nil {
		slog.Error("Failed to initialize pipeline", "error", err)
		os.Exit(1)
	}

	// Hot reload: in-flight runs keep their snapshot, new runs pick up
	// the fresh policies and timeouts.
	cfg.OnChange(func(fresh *config.Config) {
		config.SetupLogging(fresh.Logging)
		pipe.OnConfigChange(fresh.PolicyTable(), fresh.PipelineDefaults())
	})
	stopWatch, err := cfg.Watch()
	if err != nil {
		slog.Warn("Config watching disabled", "error", err)
	} else {
		defer stopWatch()
	}

	server := api.NewServer(pipe, registry, db, bus, cfg.Storage.ScreenshotsDir)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // long-poll and WebSocket endpoints manage their own deadlines
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutting down", "signal", sig.String())
	case err := <-errCh:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}

	slog.Info("Stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
