package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"CityClaim/config"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/response"
	"CityClaim/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口（秒）
	Window int
	// 时间窗口内最大请求数
	MaxRequests int
	KeyPrefix   string
	// 按用户ID限流（需要在 AuthMiddleware 之后）
	ByUserID bool
	ByIP     bool
	// 超限后的封禁时长（秒），0 表示不封禁
	BlockDuration int
}

// DefaultRateLimitConfig 所有认证接口共用，MaxRequests 为 0 时取 RATE_LIMIT_RPS * Window
var DefaultRateLimitConfig = RateLimitConfig{
	Window:    60,
	KeyPrefix: "rate:limit",
	ByUserID:  true,
	ByIP:      true,
}

// CheckInRateLimitConfig 打卡写接口，冷却期之外再挡一层刷接口
var CheckInRateLimitConfig = RateLimitConfig{
	Window:        60,
	MaxRequests:   20,
	KeyPrefix:     "checkin:rate",
	ByUserID:      true,
	BlockDuration: 300,
}

// QuestRateLimitConfig 生成任务会打上游，限得更紧
var QuestRateLimitConfig = RateLimitConfig{
	Window:        60,
	MaxRequests:   5,
	KeyPrefix:     "quest:rate",
	ByUserID:      true,
	BlockDuration: 600,
}

// RateLimiter 基于 redis zset 的滑动窗口限流器
type RateLimiter struct {
	client *redislib.Client
	config RateLimitConfig
	now    func() time.Time
}

func NewRateLimiter(client *redislib.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// identifier 用户优先，其次 IP
func (rl *RateLimiter) identifier(ctx context.Context, c *app.RequestContext) string {
	if rl.config.ByUserID {
		if userID, ok := GetUserID(ctx, c); ok {
			return "user:" + strconv.FormatInt(userID, 10)
		}
	}
	if rl.config.ByIP {
		return "ip:" + c.ClientIP()
	}
	return ""
}

// Allow 记录一次请求并返回窗口内的请求数
func (rl *RateLimiter) Allow(ctx context.Context, id string) (bool, int, error) {
	key := redis.Key(rl.config.KeyPrefix, id)
	now := rl.now()
	windowStart := now.Add(-time.Duration(rl.config.Window) * time.Second)

	pipe := rl.client.Pipeline()
	// 先清掉窗口外的记录
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})
	zcard := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, time.Duration(rl.config.Window+10)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(zcard.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) blockKey(id string) string {
	return redis.Key(rl.config.KeyPrefix, "block", id)
}

func (rl *RateLimiter) Block(ctx context.Context, id string) error {
	if rl.config.BlockDuration <= 0 {
		return nil
	}
	return rl.client.Set(ctx, rl.blockKey(id), "1", time.Duration(rl.config.BlockDuration)*time.Second).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, id string) (bool, error) {
	if rl.config.BlockDuration <= 0 {
		return false, nil
	}
	n, err := rl.client.Exists(ctx, rl.blockKey(id)).Result()
	return n > 0, err
}

// Handler 限流中间件。redis 故障时放行，只记日志
func (rl *RateLimiter) Handler() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := rl.identifier(ctx, c)
		if id == "" {
			c.Next(ctx)
			return
		}

		blocked, err := rl.IsBlocked(ctx, id)
		if err != nil {
			logger.L().Warn("Failed to check block status", zap.String("key", id), zap.Error(err))
			c.Next(ctx)
			return
		}
		if blocked {
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		allowed, count, err := rl.Allow(ctx, id)
		if err != nil {
			logger.L().Warn("Failed to check rate limit", zap.String("key", id), zap.Error(err))
			c.Next(ctx)
			return
		}

		remaining := rl.config.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(rl.config.MaxRequests))
		c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(rl.now().Add(time.Duration(rl.config.Window)*time.Second).Unix(), 10))

		if !allowed {
			if err := rl.Block(ctx, id); err != nil {
				logger.L().Warn("Failed to block caller", zap.String("key", id), zap.Error(err))
			}
			response.Error(ctx, c, errors.TooManyRequests)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}

// RateLimitMiddleware 按配置创建限流中间件；RATE_LIMIT_ENABLED=false 时直接放行
func RateLimitMiddleware(cfg RateLimitConfig) app.HandlerFunc {
	if !config.Cfg.RateLimitEnabled {
		return func(ctx context.Context, c *app.RequestContext) { c.Next(ctx) }
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = config.Cfg.RateLimitRPS * cfg.Window
	}
	return NewRateLimiter(redis.Client(), cfg).Handler()
}

func GeneralRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(DefaultRateLimitConfig)
}

func CheckInRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(CheckInRateLimitConfig)
}

func QuestRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(QuestRateLimitConfig)
}
