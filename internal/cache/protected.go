package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	ri "github.com/redis/go-redis/v9"

	"CityClaim/storage/redis"
)

// StatsCache 用户打卡统计的读穿缓存，打卡 / 撤销提交后失效。
// redis 调用经过熔断器，redis 抖动时直接回源数据库
type StatsCache struct {
	prefix  string
	ttl     time.Duration
	jitter  time.Duration
	breaker *CircuitBreaker
	client  func() *ri.Client
}

// NewStatsCache ttl 之外再加最多 ttl/10 的随机抖动，避免同一批 key 同时过期
func NewStatsCache(ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatsCache{
		prefix:  "checkin:stats",
		ttl:     ttl,
		jitter:  ttl / 10,
		breaker: NewCircuitBreaker("stats-cache", 5, 10*time.Second),
		client:  redis.Client,
	}
}

func (s *StatsCache) key(userID int64) string {
	return redis.Key(s.prefix, strconv.FormatInt(userID, 10))
}

func (s *StatsCache) expiry() time.Duration {
	if s.jitter <= 0 {
		return s.ttl
	}
	return s.ttl + time.Duration(rand.Int63n(int64(s.jitter)))
}

// Get 命中时把 JSON 解到 dest
func (s *StatsCache) Get(ctx context.Context, userID int64, dest interface{}) (bool, error) {
	var raw []byte
	err := s.breaker.Call(ctx, func() error {
		data, err := s.client().Get(ctx, s.key(userID)).Bytes()
		if stderrors.Is(err, ri.Nil) {
			// 未命中不算 redis 故障
			return nil
		}
		raw = data
		return err
	})
	if err != nil {
		return false, fmt.Errorf("stats cache get: %w", err)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("stats cache decode: %w", err)
	}
	return true, nil
}

func (s *StatsCache) Set(ctx context.Context, userID int64, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("stats cache encode: %w", err)
	}
	return s.breaker.Call(ctx, func() error {
		return s.client().Set(ctx, s.key(userID), data, s.expiry()).Err()
	})
}

// Invalidate 删除失败时返回错误，调用方只记日志，最迟 ttl 后自然过期
func (s *StatsCache) Invalidate(ctx context.Context, userID int64) error {
	return s.breaker.Call(ctx, func() error {
		return s.client().Del(ctx, s.key(userID)).Err()
	})
}
