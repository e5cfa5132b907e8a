package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"CityClaim/pkg/logger"
	"CityClaim/storage/database"
	"CityClaim/storage/mq"
	"CityClaim/storage/redis"
)

// Close 按 MQ -> Redis -> Database 的顺序关闭：先停止收发消息，最后再断开数据库
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	closers := []struct {
		name  string
		close func(context.Context) error
	}{
		{"rabbitmq", func(context.Context) error { return mq.Close() }},
		{"redis", redis.Close},
		{"database", database.Close},
	}

	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			logger.L().Error("Failed to close storage connection", zap.String("component", c.name), zap.Error(err))
			continue
		}
		logger.L().Info("Storage connection closed", zap.String("component", c.name))
	}
}
