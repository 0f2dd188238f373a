package main

import (
	"log/slog"
	"os"

	"agentdesk/internal/app"
	"agentdesk/internal/config"
	"agentdesk/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the default handler is enough to report a broken environment
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize custom logger with colors
	logHandler := logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{
		Level: logger.ParseLevel(cfg.LogLevel),
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", logger.Err(err))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", logger.Err(err))
		os.Exit(1)
	}
}
