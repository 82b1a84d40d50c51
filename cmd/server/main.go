package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cventus/azif/internal/config"
	"github.com/cventus/azif/internal/logging"
	"github.com/cventus/azif/internal/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start")
	}
	defer app.Close()

	if err := server.Run(ctx, cfg.Addr, app); err != nil {
		logger.WithError(err).Error("server stopped with error")
		app.Close()
		os.Exit(1)
	}
}
