package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"CityClaim/config"
	"CityClaim/internal/schedule"
	"CityClaim/pkg/logger"
	"CityClaim/storage/database"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	// 只需要数据库
	if err := database.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize database for scheduler", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.Close(closeCtx)
	}()

	interval := time.Hour
	// development 环境下方便本地观察
	if config.Cfg.IsDevelopment() {
		interval = time.Minute
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.Duration("sweep_interval", interval),
	)

	sweeper := schedule.Sweeper()
	// 启动时先跑一次
	if _, err := sweeper.SweepExpiredQuests(ctx); err != nil {
		logger.Logger.Error("Initial quest sweep failed", zap.Error(err))
	}
	sweeper.Run(ctx, interval)

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
