package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"CityClaim/internal/queue"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/metrics"
)

// Locker 以用户为粒度的互斥，拿不到锁时 ok=false
type Locker interface {
	Acquire(ctx context.Context, userID int64) (release func(), ok bool, err error)
}

// EventPublisher 事务提交后发布领域事件，失败只记日志
type EventPublisher interface {
	PublishCheckInCreated(ctx context.Context, msg queue.CheckInCreatedMessage) error
	PublishCheckInUndone(ctx context.Context, msg queue.CheckInUndoneMessage) error
	PublishZoneCaptured(ctx context.Context, msg queue.ZoneCapturedMessage) error
	PublishNeighborhoodCaptured(ctx context.Context, msg queue.NeighborhoodCapturedMessage) error
	PublishQuestGenerate(ctx context.Context, msg queue.QuestGenerateMessage) error
}

// StatsCache 用户统计缓存
type StatsCache interface {
	Get(ctx context.Context, userID int64, dest interface{}) (bool, error)
	Set(ctx context.Context, userID int64, value interface{}) error
	Invalidate(ctx context.Context, userID int64) error
}

// 冲突或存储错误只整体重试一次
const (
	maxAttempts   = 2
	retryBackoff  = 50 * time.Millisecond
	lockedMessage = "user is busy"
)

// retryable 并发冲突和存储层错误（断连、超时等）可以重试；
// 业务错误（围栏、冷却、找不到目标）和调用方取消不重试
func retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var conflict *errors.ConcurrencyConflictError
	if stderrors.As(err, &conflict) {
		return true
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var def errors.Definition
	return !stderrors.As(err, &def)
}

// runExclusive 持有用户锁在事务边界执行 fn，可重试的错误整体重试一次
func runExclusive(ctx context.Context, locker Locker, userID int64, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = lockAndRun(ctx, locker, userID, op, fn)
		if !retryable(ctx, err) {
			return err
		}

		if attempt < maxAttempts {
			logger.Ctx(ctx).Warn("Unit of work failed, retrying",
				zap.String("op", op),
				zap.Int64("user_id", userID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			metrics.RecordConflictRetry(ctx, op)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
	}

	logger.Ctx(ctx).Error("Unit of work still failing after retry",
		zap.String("op", op),
		zap.Int64("user_id", userID),
		zap.Error(err),
	)
	return err
}

func lockAndRun(ctx context.Context, locker Locker, userID int64, op string, fn func() error) error {
	if locker == nil {
		return fn()
	}

	release, ok, err := locker.Acquire(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: acquire user lock: %w", op, err)
	}
	if !ok {
		return &errors.ConcurrencyConflictError{Op: op, Cause: stderrors.New(lockedMessage)}
	}
	defer release()

	return fn()
}

// rejectionReason 用于指标打点
func rejectionReason(err error) string {
	switch {
	case stderrors.Is(err, errors.TooFar):
		return "too_far"
	case stderrors.Is(err, errors.CooldownActive):
		return "cooldown"
	case stderrors.Is(err, errors.TargetNotFound):
		return "not_found"
	case stderrors.Is(err, errors.ConcurrencyConflict):
		return "conflict"
	default:
		return "internal"
	}
}

func isTargetNotFound(err error) bool {
	return stderrors.Is(err, errors.TargetNotFound)
}
