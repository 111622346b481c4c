package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apresai/personacall/internal/config"
	"github.com/apresai/personacall/internal/mcpserver"
	"github.com/apresai/personacall/internal/observability"
)

var version = "dev"

func main() {
	cfg, err := config.Load(config.New(), os.Getenv("PERSONACALL_CONFIG"))
	if err != nil {
		observability.InitLogger("info").Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.LogLevel)

	logger.Info("PersonaCall MCP Server starting...", "version", version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := mcpserver.Run(ctx, cfg, version, logger); err != nil {
		logger.Error("Server error", "error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}
