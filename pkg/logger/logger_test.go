package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestCtxAddsTraceFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Logger = zap.New(core)
	t.Cleanup(func() { Logger = nil })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	Ctx(ctx).Info("with span")
	Ctx(context.Background()).Info("without span")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entries[0].ContextMap()["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entries[0].ContextMap()["span_id"])
	assert.NotContains(t, entries[1].ContextMap(), "trace_id")
}

func TestLFallsBackToNop(t *testing.T) {
	Logger = nil
	assert.NotNil(t, L())
	assert.NotPanics(t, func() { L().Info("dropped") })
}
