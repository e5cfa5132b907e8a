package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"CityClaim/config"
	redisotel "CityClaim/pkg/redis"
)

const defaultPrefix = "cc"

var (
	client *redis.Client
	once   sync.Once
	err    error
)

func options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		// 用户锁和限流都是短命令，失败快速返回比长时间重试好
		MaxRetries:   2,
		MinIdleConns: 5,
	}
}

// Init 建立连接并 ping，开启 OTel 时挂上追踪 hook
func Init() error {
	once.Do(func() {
		cfg := &config.Cfg
		client = redis.NewClient(options(cfg))

		if cfg.OTelEnabled {
			redisotel.InstrumentRedisClient(client, cfg.ServiceName, cfg.RedisDB)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			err = fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, pingErr)
		}
	})

	return err
}

// SetClient 测试或工具注入已有客户端
func SetClient(c *redis.Client) {
	client = c
}

func Client() *redis.Client {
	if client == nil {
		panic("Redis client not init")
	}
	return client
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Key 用配置的前缀拼接 key，空段会被跳过：Key("lock", "user", "42") -> cc:lock:user:42
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = defaultPrefix
	}

	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, prefix)
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}
