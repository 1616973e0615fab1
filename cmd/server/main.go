package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lostmedia/interaction-service/internal/app"
	"github.com/lostmedia/interaction-service/internal/config"
	"github.com/lostmedia/interaction-service/internal/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.For(context.Background()).WithError(err).Fatal("Failed to load config")
	}

	gin.SetMode(cfg.GinMode)
	logger.Configure(cfg.LogLevel, cfg.GinMode == gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := app.NewServer(ctx, cfg)
	if err != nil {
		logger.For(ctx).WithError(err).Fatal("Failed to initialize server")
	}

	if err := server.Run(ctx); err != nil {
		logger.For(ctx).WithError(err).Fatal("Server stopped with error")
	}
	logger.For(ctx).Info("Server stopped")
}
