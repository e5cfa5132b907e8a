package repository

import (
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"CityClaim/pkg/errors"
)

// PostgreSQL 可重试错误码
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// classify 把可重试的 PostgreSQL 错误转换成 ConcurrencyConflictError，业务错误原样返回，其它错误带上操作名
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	// 业务错误（围栏、冷却、找不到目标等）直接透传
	var def errors.Definition
	if stderrors.As(err, &def) {
		return err
	}
	var conflict *errors.ConcurrencyConflictError
	if stderrors.As(err, &conflict) {
		return err
	}

	if IsRetryable(err) {
		return &errors.ConcurrencyConflictError{Op: op, Cause: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable 是否是 PostgreSQL 的序列化失败、死锁或拿不到行锁
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return true
	}
	return false
}
