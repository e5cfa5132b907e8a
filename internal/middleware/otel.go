package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// httpInstruments 服务端 HTTP 指标，InitMetrics 之前全部为 nil
type httpInstruments struct {
	requests     metric.Int64Counter
	duration     metric.Float64Histogram
	requestSize  metric.Int64Histogram
	responseSize metric.Int64Histogram
	active       metric.Int64UpDownCounter
}

var httpMetrics *httpInstruments

// toValidUTF8 用户可控字符串先清洗，非法 UTF-8 会让 span 导出失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// InitMetrics 注册 HTTP 指标
func InitMetrics(meter metric.Meter) error {
	m := &httpInstruments{}
	var err error

	if m.requests, err = meter.Int64Counter("http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}
	if m.duration, err = meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		return err
	}
	if m.requestSize, err = meter.Int64Histogram("http.server.request.size",
		metric.WithDescription("HTTP request body size"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}
	if m.responseSize, err = meter.Int64Histogram("http.server.response.size",
		metric.WithDescription("HTTP response body size"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}
	if m.active, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return err
	}

	httpMetrics = m
	return nil
}

// OpenTelemetryMiddleware 每个请求一个 span，外加请求量、耗时、包大小指标。
// 认证在路由组里执行，c.Next 返回后才能拿到用户 ID
func OpenTelemetryMiddleware() app.HandlerFunc {
	tracer := otel.Tracer("cityclaim/http")

	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()

		// 指标只用路由模板，路径参数会撑爆基数
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := toValidUTF8(string(c.Method()))

		spanCtx, span := tracer.Start(ctx, method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethod(method),
				semconv.HTTPRoute(route),
				attribute.String("http.target", toValidUTF8(string(c.Path()))),
				semconv.HTTPScheme(toValidUTF8(string(c.Request.URI().Scheme()))),
				attribute.String("http.user_agent", toValidUTF8(string(c.UserAgent()))),
			),
		)
		defer span.End()

		if id := c.GetHeader("X-Request-ID"); len(id) > 0 {
			span.SetAttributes(attribute.String("http.request_id", toValidUTF8(string(id))))
		}

		if httpMetrics != nil {
			httpMetrics.active.Add(ctx, 1)
			defer httpMetrics.active.Add(ctx, -1)
		}

		c.Next(spanCtx)

		status := c.Response.StatusCode()
		span.SetAttributes(semconv.HTTPStatusCode(status))
		if userID, ok := GetUserID(spanCtx, c); ok {
			span.SetAttributes(attribute.Int64("enduser.id", userID))
		}
		switch {
		case status >= 500:
			span.SetStatus(codes.Error, "server error")
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(lastErr)
			}
		case status >= 400:
			// 4xx 是调用方的问题，span 不标红
			span.SetAttributes(attribute.Bool("http.client_error", true))
		default:
			span.SetStatus(codes.Ok, "")
		}

		if httpMetrics == nil {
			return
		}
		attrs := metric.WithAttributes(
			semconv.HTTPMethod(method),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(status),
		)
		httpMetrics.requests.Add(ctx, 1, attrs)
		httpMetrics.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		if n := int64(c.Request.Header.ContentLength()); n > 0 {
			httpMetrics.requestSize.Record(ctx, n, attrs)
		}
		if n := int64(len(c.Response.Body())); n > 0 {
			httpMetrics.responseSize.Record(ctx, n, attrs)
		}
	}
}

// NewServerTracerConfig hertz server 的追踪选项和对应中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}

// NoopMiddleware 未开启追踪时占位
func NoopMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Next(ctx)
	}
}
