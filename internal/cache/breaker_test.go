package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	ri "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"CityClaim/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	m.Run()
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("test", 2, time.Minute)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	ctx := context.Background()

	assert.ErrorIs(t, cb.Call(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(ctx, func() error { return boom }), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(ctx, func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.False(t, called)

	now = now.Add(time.Minute)
	assert.NoError(t, cb.Call(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker("test", 1, time.Second)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Call(ctx, func() error { return errors.New("x") })
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(2 * time.Second)
	_ = cb.Call(ctx, func() error { return errors.New("still down") })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestStatsCache_ExpiryStaysWithinJitter(t *testing.T) {
	sc := NewStatsCache(100 * time.Second)

	for i := 0; i < 50; i++ {
		ttl := sc.expiry()
		assert.GreaterOrEqual(t, ttl, 100*time.Second)
		assert.Less(t, ttl, 110*time.Second)
	}
}

func TestStatsCache_OpenBreakerSkipsRedis(t *testing.T) {
	sc := NewStatsCache(time.Minute)
	sc.client = func() *ri.Client {
		t.Fatal("redis must not be touched while the breaker is open")
		return nil
	}
	sc.breaker = NewCircuitBreaker("test", 1, time.Hour)
	_ = sc.breaker.Call(context.Background(), func() error { return errors.New("down") })

	var dest map[string]int
	hit, err := sc.Get(context.Background(), 7, &dest)
	assert.False(t, hit)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.ErrorIs(t, sc.Invalidate(context.Background(), 7), ErrBreakerOpen)
}
