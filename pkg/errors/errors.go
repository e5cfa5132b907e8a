package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 通用错误。
var (
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	InvalidUserID   = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	InternalError   = Definition{Code: "INTERNAL_ERROR", Message: "Internal error"}
)

// 打卡模块错误。
var (
	TooFar              = Definition{Code: "CHECKIN_TOO_FAR", Message: "Too far from the target"}
	CooldownActive      = Definition{Code: "CHECKIN_COOLDOWN_ACTIVE", Message: "Check-in cooldown active"}
	TargetNotFound      = Definition{Code: "TARGET_NOT_FOUND", Message: "Target not found"}
	NoCheckInToUndo     = Definition{Code: "NO_CHECKIN_TO_UNDO", Message: "No check-in to undo"}
	ConcurrencyConflict = Definition{Code: "CONCURRENCY_CONFLICT", Message: "Concurrent modification, please retry"}
)

// 任务（quest）模块错误。
var (
	QuestValidationFailed = Definition{Code: "QUEST_VALIDATION_FAILED", Message: "Quest suggestions rejected"}
	QuestUpstreamFailed   = Definition{Code: "QUEST_UPSTREAM_FAILED", Message: "Quest generator unavailable"}
)

// Detailer 由携带上下文数据的错误实现，response 包会把它放进 error.details
type Detailer interface {
	Details() map[string]interface{}
}

// TooFarError 声明位置超出允许半径
type TooFarError struct {
	DistanceMeters float64
	MaxDistance    float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("too far from target: %.1fm > %.1fm", e.DistanceMeters, e.MaxDistance)
}

func (e *TooFarError) Unwrap() error { return TooFar }

func (e *TooFarError) Details() map[string]interface{} {
	return map[string]interface{}{
		"distance_meters": e.DistanceMeters,
		"max_distance":    e.MaxDistance,
	}
}

// CooldownActiveError 同一 (user, business) 冷却期未结束
type CooldownActiveError struct {
	NextAvailableAt time.Time
}

func (e *CooldownActiveError) Error() string {
	return "check-in cooldown active until " + e.NextAvailableAt.Format(time.RFC3339)
}

func (e *CooldownActiveError) Unwrap() error { return CooldownActive }

func (e *CooldownActiveError) Details() map[string]interface{} {
	return map[string]interface{}{
		"next_available_at": e.NextAvailableAt.UTC().Format(time.RFC3339),
	}
}

// TargetNotFoundError 商户或区域不存在
type TargetNotFoundError struct {
	Kind string // business, zone, quest
	ID   int64
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

func (e *TargetNotFoundError) Unwrap() error { return TargetNotFound }

func (e *TargetNotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{
		"kind": e.Kind,
		"id":   fmt.Sprintf("%d", e.ID),
	}
}

// NoCheckInToUndoError 没有可撤销的打卡
type NoCheckInToUndoError struct {
	BusinessID int64
}

func (e *NoCheckInToUndoError) Error() string {
	return fmt.Sprintf("no check-in to undo for business %d", e.BusinessID)
}

func (e *NoCheckInToUndoError) Unwrap() error { return NoCheckInToUndo }

// QuestValidationError 一整批建议都没有通过校验，调用方应走模板兜底
type QuestValidationError struct {
	Rejected int
	Reasons  []string
}

func (e *QuestValidationError) Error() string {
	return fmt.Sprintf("all %d quest suggestions rejected: %s", e.Rejected, strings.Join(e.Reasons, "; "))
}

func (e *QuestValidationError) Unwrap() error { return QuestValidationFailed }

// ConcurrencyConflictError 事务冲突（序列化失败、死锁、用户锁被占用），可以重试
type ConcurrencyConflictError struct {
	Op    string
	Cause error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: concurrency conflict: %v", e.Op, e.Cause)
	}
	return e.Op + ": concurrency conflict"
}

func (e *ConcurrencyConflictError) Unwrap() error { return ConcurrencyConflict }

// 令牌相关的内部错误
var (
	ErrTokenGeneratorNotInitialized = stderrors.New("token generator not initialized")
	ErrUnexpectedSigningMethod      = stderrors.New("unexpected signing method")
	ErrInvalidToken                 = stderrors.New("invalid token")
	ErrInvalidTokenClaims           = stderrors.New("invalid token claims")
	ErrUserIDNotFound               = stderrors.New("user id not found in token")
)
