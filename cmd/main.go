package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angeloszaimis/eventguard/config"
	"github.com/angeloszaimis/eventguard/internal/app"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log, err := logger.Build(cfg.Logging.Backend, cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment)
	if err != nil {
		slog.Error("failed to build logger", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := initializeApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize application", "err", err)
		os.Exit(1)
	}

	runErr := application.Run(ctx)
	if runErr != nil {
		log.Error("Application stopped with error", "err", runErr)
	} else {
		log.Info("Shutting down gracefully...")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "err", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
}

// initializeApp builds the application and wires the default event
// handlers.
func initializeApp(cfg *config.Config, log logger.Logger, opts ...app.Option) (*app.App, error) {
	if cfg.AI.APIKey == "" {
		log.Warn("No AI API key configured, AI calls will fail until one is set")
	}

	a, err := app.New(cfg, log, opts...)
	if err != nil {
		return nil, err
	}
	if err := a.RegisterDefaultHandlers(); err != nil {
		return nil, err
	}
	return a, nil
}
