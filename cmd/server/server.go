package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	cfg "CityClaim/config"
	"CityClaim/internal/middleware"
	"CityClaim/internal/router"
	"CityClaim/pkg/logger"
	cotel "CityClaim/pkg/otel"
	"CityClaim/pkg/snowflake"
	"CityClaim/pkg/token"
	"CityClaim/storage"
)

const serviceVersion = "0.1.0"

func main() {
	if err := cfg.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	// 可观测性要在存储层之前，数据库插件和 redis hook 初始化时会读取全局 provider
	var serverOpts []config.Option
	tracingMW := middleware.NoopMiddleware()
	if cfg.Cfg.OTelEnabled {
		shutdown, err := cotel.InitOpenTelemetry(ctx, cotel.Config{
			ServiceName:    cfg.Cfg.ServiceName,
			ServiceVersion: serviceVersion,
			Environment:    cfg.Cfg.Environment,
			OTLPEndpoint:   cfg.Cfg.OTelEndpoint,
			SampleRatio:    cfg.Cfg.OTelSampleRatio,
		})
		if err != nil {
			logger.Logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Logger.Warn("OpenTelemetry shutdown failed", zap.Error(err))
			}
		}()

		if err := cotel.InitInstruments(); err != nil {
			logger.Logger.Fatal("Failed to initialize metrics", zap.Error(err))
		}
		if err := middleware.InitMetrics(otel.Meter("cityclaim/http")); err != nil {
			logger.Logger.Fatal("Failed to initialize HTTP metrics", zap.Error(err))
		}

		tracerOpt, mw := middleware.NewServerTracerConfig()
		serverOpts = append(serverOpts, tracerOpt)
		tracingMW = mw
	}

	if err := snowflake.Init(cfg.Cfg.SnowflakeMachineID, cfg.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	// token 在中间件前初始化，middleware 依赖 token
	if err := token.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	}

	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.Cfg.ServiceName),
		zap.String("port", cfg.Cfg.ServerPort),
		zap.String("environment", cfg.Cfg.Environment),
	)

	addr := net.JoinHostPort(cfg.Cfg.ServerHost, cfg.Cfg.ServerPort)
	serverOpts = append(serverOpts, server.WithHostPorts(addr))
	h := server.Default(serverOpts...)
	h.Use(tracingMW)

	router.Register(h)

	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
