package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/visiona/framecast/internal/broadcast"
	"github.com/visiona/framecast/internal/capture"
	"github.com/visiona/framecast/internal/config"
	"github.com/visiona/framecast/internal/server"
)

const defaultConfigPath = "config/framecast.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting framecast",
		"config", *configPath,
		"debug", *debug,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// The camera must be open before the listener starts; an unreachable
	// device aborts startup with a clear diagnostic.
	src, err := capture.Open(cfg.Camera)
	if err != nil {
		slog.Error("failed to open camera source", "source", cfg.Camera.Source, "error", err)
		os.Exit(1)
	}
	defer src.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := broadcast.NewBus()
	pump := broadcast.NewPump(src, bus, broadcast.PumpConfig{
		Interval:               cfg.FrameInterval(),
		MaxConsecutiveFailures: cfg.Stream.MaxConsecutiveFailures,
	})
	if err := pump.Start(ctx); err != nil {
		slog.Error("failed to start capture pump", "error", err)
		os.Exit(1)
	}
	defer pump.Stop()

	srv := server.New(cfg, src, bus, pump)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	slog.Info("shutting down gracefully", "timeout", cfg.ShutdownTimeout())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}

	pump.Stop()
	if err := src.Release(); err != nil {
		slog.Error("camera release failed", "error", err)
		os.Exit(1)
	}

	slog.Info("framecast stopped")
}
