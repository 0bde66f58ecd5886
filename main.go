package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/wfunc/chessrelay/config"
	"github.com/wfunc/chessrelay/logger"
	"github.com/wfunc/chessrelay/server"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init(false)
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Development)
	defer logger.Sync()
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Log.Fatalf("Invalid log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := server.NewGameServer(cfg)

	logger.Log.Infof("Starting relay server on %s", cfg.Server.HTTPAddress)
	if err := relay.Start(ctx); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
	logger.Log.Info("Relay server stopped.")
}
