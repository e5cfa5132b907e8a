package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type instruments struct {
	commands metric.Int64Counter
	duration metric.Float64Histogram
	lookups  metric.Int64Counter
}

// 未初始化时 hook 只打 span 不记指标
var redisMetrics *instruments

// InitRedisMetrics 注册命令计数、耗时和缓存命中指标
func InitRedisMetrics(meter metric.Meter) error {
	var (
		m   instruments
		err error
	)
	if m.commands, err = meter.Int64Counter("redis.commands.total",
		metric.WithDescription("Redis commands by name and outcome"),
		metric.WithUnit("{command}")); err != nil {
		return err
	}
	if m.duration, err = meter.Float64Histogram("redis.command.duration",
		metric.WithDescription("Redis command latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1)); err != nil {
		return err
	}
	if m.lookups, err = meter.Int64Counter("redis.cache.lookups",
		metric.WithDescription("GET lookups split by hit or miss"),
		metric.WithUnit("{lookup}")); err != nil {
		return err
	}
	redisMetrics = &m
	return nil
}

// outcome redis.Nil 算作未命中，不是错误
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, redis.Nil):
		return "miss"
	default:
		return "error"
	}
}

// keyFamily 取键的前两段，比如 cc:lock:user:7 -> cc:lock，避免把用户 ID 打进属性
func keyFamily(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return key
	}
	return parts[0] + ":" + parts[1]
}

// firstKey EVAL / EVALSHA 的第一个键在 numkeys 之后
func firstKey(args []interface{}) (string, bool) {
	idx := 1
	if name, ok := args[0].(string); ok {
		if n := strings.ToUpper(name); n == "EVAL" || n == "EVALSHA" {
			idx = 3
		}
	}
	if idx >= len(args) {
		return "", false
	}
	key, ok := args[idx].(string)
	return key, ok
}

// tracingHook 每条命令一个 client span，不记录参数值
type tracingHook struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func newTracingHook(serviceName string, db int) *tracingHook {
	return &tracingHook{
		tracer: otel.Tracer(serviceName + "/redis"),
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
		},
	}
}

func (h *tracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *tracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := strings.ToUpper(cmd.Name())
		attrs := append([]attribute.KeyValue{semconv.DBOperation(name)}, h.attrs...)
		if key, ok := firstKey(cmd.Args()); ok {
			attrs = append(attrs, attribute.String("redis.key_family", keyFamily(key)))
		}

		ctx, span := h.tracer.Start(ctx, "redis "+name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
		start := time.Now()
		err := next(ctx, cmd)
		h.finish(ctx, span, err)

		if m := redisMetrics; m != nil {
			res := outcome(err)
			set := metric.WithAttributes(attribute.String("command", name), attribute.String("outcome", res))
			m.commands.Add(ctx, 1, set)
			m.duration.Record(ctx, time.Since(start).Seconds(), set)
			if name == "GET" && res != "error" {
				m.lookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", res == "ok")))
			}
		}
		return err
	}
}

func (h *tracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		names := make([]string, len(cmds))
		for i, cmd := range cmds {
			names[i] = strings.ToUpper(cmd.Name())
		}

		ctx, span := h.tracer.Start(ctx, "redis pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(h.attrs...),
			trace.WithAttributes(
				attribute.Int("redis.pipeline.length", len(cmds)),
				attribute.StringSlice("redis.pipeline.commands", names),
			),
		)
		err := next(ctx, cmds)
		h.finish(ctx, span, err)
		return err
	}
}

func (h *tracingHook) finish(_ context.Context, span trace.Span, err error) {
	if outcome(err) == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// InstrumentRedisClient 挂上追踪 hook
func InstrumentRedisClient(client *redis.Client, serviceName string, db int) {
	client.AddHook(newTracingHook(serviceName, db))
}
