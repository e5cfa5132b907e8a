package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"CityClaim/storage/redis"
)

// 分布式锁：SETNX + 随机 token，释放时比对 token，避免误删别人续上的锁
const (
	lockPrefix = "lock"

	// UserLockTTL 单次打卡 / 撤销持有用户锁的最长时间
	UserLockTTL = 10 * time.Second
)

var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock 尝试加锁，成功时返回持有者 token
func TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := redis.Client().SetNX(ctx, redis.Key(lockPrefix, key), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Unlock 只有 token 匹配时才删除
func Unlock(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, redis.Client(), []string{redis.Key(lockPrefix, key)}, token).Err()
}

// UserLocker 以用户为粒度的互斥，同一用户的打卡与撤销串行执行
type UserLocker struct {
	ttl time.Duration
}

// NewUserLocker 创建用户锁
func NewUserLocker(ttl time.Duration) *UserLocker {
	if ttl <= 0 {
		ttl = UserLockTTL
	}
	return &UserLocker{ttl: ttl}
}

// Acquire 拿不到锁时返回 ok=false，由调用方决定是否按并发冲突处理
func (l *UserLocker) Acquire(ctx context.Context, userID int64) (release func(), ok bool, err error) {
	key := fmt.Sprintf("user:%d", userID)
	token, ok, err := TryLock(ctx, key, l.ttl)
	if err != nil || !ok {
		return func() {}, ok, err
	}

	return func() {
		// 请求 ctx 可能已取消，释放锁用独立的短超时
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = Unlock(unlockCtx, key, token)
	}, true, nil
}
