package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/app"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/config"
	pkgconfig "github.com/sylwiakmieciak/madebyu-sub000/pkg/config"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/logger"
)

func main() {
	// A local .env fills in anything the environment does not set.
	if err := pkgconfig.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(app.ServiceName, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Info("starting marketplace service",
		slog.String("environment", cfg.Environment),
		slog.String("version", app.Version),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("storage", cfg.StorageDriver),
		slog.Bool("kafka", cfg.KafkaEnabled),
		slog.Bool("redis", cfg.RedisEnabled),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("marketplace service stopped")
}
