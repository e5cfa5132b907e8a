package middleware

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"CityClaim/config"
	"CityClaim/pkg/errors"
	"CityClaim/pkg/logger"
	"CityClaim/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 堆栈深度上限，0 表示不记录堆栈
	MaxStackFrames int
	// 非生产环境把 panic 信息放进 error.details
	ExposeDetails bool
	// 是否在 span 中记录异常
	RecordInSpan bool
	// 严重错误回调（告警）
	OnSevereError func(ctx context.Context, c *app.RequestContext, err interface{}, stack string)
}

// NewRecoverConfig 创建 recover 配置
func NewRecoverConfig() RecoverConfig {
	return RecoverConfig{
		MaxStackFrames: 32,
		ExposeDetails:  !config.Cfg.IsProduction(),
		RecordInSpan:   true,
	}
}

// RecoverMiddleware 创建 recover 中间件
func RecoverMiddleware() app.HandlerFunc {
	return RecoverMiddlewareWithConfig(NewRecoverConfig())
}

// RecoverMiddlewareWithConfig 带配置的 recover 中间件
func RecoverMiddlewareWithConfig(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, cfg RecoverConfig) {
	stack := stackTrace(cfg.MaxStackFrames)

	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("request_id", requestID(c)),
	}
	if userID, ok := GetUserID(ctx, c); ok {
		fields = append(fields, zap.Int64("user_id", userID))
	}
	if stack != "" {
		fields = append(fields, zap.String("stack", stack))
	}
	logger.L().Error("[PANIC RECOVERED]", fields...)

	if cfg.RecordInSpan {
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.RecordError(fmt.Errorf("panic: %v", err))
			span.SetStatus(codes.Error, "panic recovered")
		}
	}

	if isSeverePanic(err) && cfg.OnSevereError != nil {
		cfg.OnSevereError(ctx, c, err, stack)
	}

	if cfg.ExposeDetails {
		response.ErrorWithDetails(ctx, c, errors.InternalError, map[string]interface{}{
			"panic":     fmt.Sprintf("%v", err),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	} else {
		response.Error(ctx, c, errors.InternalError)
	}
	c.Abort()
}

func requestID(c *app.RequestContext) string {
	if id := c.GetHeader("X-Request-ID"); len(id) > 0 {
		return string(id)
	}
	return string(c.GetHeader("X-Trace-ID"))
}

// stackTrace 当前 goroutine 的调用栈，跳过 runtime 帧
func stackTrace(maxFrames int) string {
	if maxFrames <= 0 {
		return ""
	}

	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var sb strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			sb.WriteString(frame.Function)
			sb.WriteString("\n\t")
			sb.WriteString(frame.File)
			sb.WriteString(":")
			sb.WriteString(strconv.Itoa(frame.Line))
			sb.WriteString("\n")
		}
		if !more {
			break
		}
	}
	return sb.String()
}

var severePatterns = []string{
	"out of memory",
	"concurrent map writes",
	"concurrent map read and map write",
	"index out of range",
	"slice bounds out of range",
	"nil pointer dereference",
}

// isSeverePanic 判断是否需要告警
func isSeverePanic(err interface{}) bool {
	if err == nil {
		return false
	}
	msg := fmt.Sprintf("%v", err)
	for _, pattern := range severePatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
