package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzap "github.com/hertz-contrib/logger/zap"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"CityClaim/config"
)

var (
	Logger   *zap.Logger
	logClose io.Closer
)

// 配置里的级别名 -> zap / hlog 级别
var levels = map[string]struct {
	zap  zapcore.Level
	hlog hlog.Level
}{
	"DEBUG": {zapcore.DebugLevel, hlog.LevelDebug},
	"INFO":  {zapcore.InfoLevel, hlog.LevelInfo},
	"WARN":  {zapcore.WarnLevel, hlog.LevelWarn},
	"ERROR": {zapcore.ErrorLevel, hlog.LevelError},
}

// Init 通过 hertz-contrib/logger/zap 初始化，hertz 框架日志和业务日志共用同一个 core
func Init() {
	lvl, ok := levels[strings.ToUpper(config.Cfg.LoggerLevel)]
	if !ok {
		lvl = levels["INFO"]
	}
	coreLevel := zap.NewAtomicLevelAt(lvl.zap)

	hzLogger := hertzzap.NewLogger(
		hertzzap.WithCoreEnc(buildEncoder()),
		hertzzap.WithCoreWs(buildWriteSyncer()),
		hertzzap.WithCoreLevel(coreLevel),
		hertzzap.WithZapOptions(
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("service", config.Cfg.ServiceName),
				zap.String("env", config.Cfg.Environment),
			),
		),
	)
	hlog.SetLogger(hzLogger)
	hlog.SetLevel(lvl.hlog)

	Logger = hzLogger.Logger()
	Logger.Info("Logger initialized",
		zap.String("level", coreLevel.Level().CapitalString()),
		zap.String("format", config.Cfg.LoggerFormat),
	)
}

// InitNop 测试和工具使用的空 logger
func InitNop() {
	Logger = zap.NewNop()
}

// L 未初始化时退化为空 logger
func L() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

// Ctx 带上当前 span 的 trace_id / span_id，日志能和链路对上
func Ctx(ctx context.Context) *zap.Logger {
	l := L()
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
	if logClose != nil {
		_ = logClose.Close()
	}
}

func buildEncoder() zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	if config.Cfg.IsDevelopment() || strings.EqualFold(config.Cfg.LoggerFormat, "text") {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func buildWriteSyncer() zapcore.WriteSyncer {
	path := config.Cfg.LoggerOutputPath
	if path == "" || strings.EqualFold(path, "stdout") {
		return zapcore.AddSync(os.Stdout)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic("failed to open log file: " + err.Error())
	}
	logClose = file
	return zapcore.AddSync(file)
}
