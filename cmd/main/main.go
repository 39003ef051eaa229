package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"apteka/parser/internal/config"
	"apteka/parser/internal/container"

	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("Starting apteka catalog parser...")

	// Load configuration using viper
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.Log)
	log.Infof("Configuration loaded successfully (mode: %s, sink: %s, %d slugs)",
		cfg.Apteka.Mode, cfg.Sink.Type, len(cfg.Apteka.Slugs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize container with all dependencies
	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Run the application
	runErr := app.Run(ctx)
	if err := app.Close(); err != nil {
		log.Errorf("Failed to close container: %v", err)
	}

	switch {
	case errors.Is(runErr, context.Canceled):
		log.Warn("🛑 Interrupted, partial results were kept")
	case runErr != nil:
		log.Fatalf("Application exited with error: %v", runErr)
	default:
		log.Info("Application finished successfully")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("⚠️ Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
