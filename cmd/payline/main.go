package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/internal/pkg/config"
	"github.com/ManuelReschke/Payline/internal/pkg/env"
	"github.com/ManuelReschke/Payline/internal/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if !env.SetupEnvFile() {
		log.Print("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	fiberlog.SetOutput(zap.NewStdLog(lg.Named("fiber")).Writer())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := NewApplication(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("failed to build application", zap.Error(err))
	}

	go func() {
		lg.Info("http server listening", zap.String("addr", cfg.Addr()), zap.String("env", cfg.AppEnv))
		if err := application.App.Listen(cfg.Addr()); err != nil {
			lg.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	if err := application.App.ShutdownWithTimeout(shutdownTimeout); err != nil {
		lg.Error("graceful shutdown failed", zap.Error(err))
	}
	application.Close()
}
