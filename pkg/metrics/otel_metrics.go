package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 打卡引擎指标集合
type OTelMetrics struct {
	CheckInTotal          metric.Int64Counter
	CheckInRejectedTotal  metric.Int64Counter
	CheckInPoints         metric.Int64Histogram
	ZoneCapturedTotal     metric.Int64Counter
	NeighborhoodCaptured  metric.Int64Counter
	UndoTotal             metric.Int64Counter
	ConflictRetryTotal    metric.Int64Counter
	QuestBatchTotal       metric.Int64Counter
	QuestGuardrailRejects metric.Int64Counter
}

var (
	// 全局指标实例
	metrics *OTelMetrics
	// meter 用于创建指标
	meter = otel.Meter("cityclaim")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error
	m := &OTelMetrics{}

	if m.CheckInTotal, err = meter.Int64Counter(
		"checkin_total",
		metric.WithDescription("Total number of accepted check-ins"),
		metric.WithUnit("{checkin}"),
	); err != nil {
		return err
	}

	if m.CheckInRejectedTotal, err = meter.Int64Counter(
		"checkin_rejected_total",
		metric.WithDescription("Check-ins rejected by geofence, cooldown or lookup"),
		metric.WithUnit("{checkin}"),
	); err != nil {
		return err
	}

	if m.CheckInPoints, err = meter.Int64Histogram(
		"checkin_points",
		metric.WithDescription("Points awarded per check-in"),
		metric.WithUnit("{point}"),
	); err != nil {
		return err
	}

	if m.ZoneCapturedTotal, err = meter.Int64Counter(
		"zone_captured_total",
		metric.WithDescription("Zones newly captured"),
		metric.WithUnit("{zone}"),
	); err != nil {
		return err
	}

	if m.NeighborhoodCaptured, err = meter.Int64Counter(
		"neighborhood_captured_total",
		metric.WithDescription("Neighborhoods newly fully captured"),
		metric.WithUnit("{neighborhood}"),
	); err != nil {
		return err
	}

	if m.UndoTotal, err = meter.Int64Counter(
		"checkin_undo_total",
		metric.WithDescription("Check-ins undone"),
		metric.WithUnit("{checkin}"),
	); err != nil {
		return err
	}

	if m.ConflictRetryTotal, err = meter.Int64Counter(
		"checkin_conflict_retry_total",
		metric.WithDescription("Units of work retried after a concurrency conflict"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return err
	}

	if m.QuestBatchTotal, err = meter.Int64Counter(
		"quest_batch_total",
		metric.WithDescription("Quest batches persisted, by source"),
		metric.WithUnit("{batch}"),
	); err != nil {
		return err
	}

	if m.QuestGuardrailRejects, err = meter.Int64Counter(
		"quest_guardrail_rejected_total",
		metric.WithDescription("Upstream quest suggestions rejected by the guardrail"),
		metric.WithUnit("{quest}"),
	); err != nil {
		return err
	}

	metrics = m
	return nil
}

// GetMetrics 获取全局指标实例，未初始化时为 nil
func GetMetrics() *OTelMetrics {
	return metrics
}

// 以下函数在指标未初始化时（测试、工具）什么都不做

// RecordCheckIn 记录一次成功打卡
func RecordCheckIn(ctx context.Context, firstVisit bool, points int) {
	m := GetMetrics()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("first_visit", firstVisit))
	m.CheckInTotal.Add(ctx, 1, attrs)
	m.CheckInPoints.Record(ctx, int64(points), attrs)
}

// RecordCheckInRejected reason: too_far, cooldown, not_found, conflict
func RecordCheckInRejected(ctx context.Context, reason string) {
	if m := GetMetrics(); m != nil {
		m.CheckInRejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordCapture 记录区域 / 街区占领
func RecordCapture(ctx context.Context, zone, neighborhood bool) {
	m := GetMetrics()
	if m == nil {
		return
	}
	if zone {
		m.ZoneCapturedTotal.Add(ctx, 1)
	}
	if neighborhood {
		m.NeighborhoodCaptured.Add(ctx, 1)
	}
}

// RecordUndo 记录撤销
func RecordUndo(ctx context.Context, zoneLost, neighborhoodLost bool) {
	if m := GetMetrics(); m != nil {
		m.UndoTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("zone_lost", zoneLost),
			attribute.Bool("neighborhood_lost", neighborhoodLost),
		))
	}
}

// RecordConflictRetry 记录并发冲突重试
func RecordConflictRetry(ctx context.Context, op string) {
	if m := GetMetrics(); m != nil {
		m.ConflictRetryTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}
}

// RecordQuestBatch source: ai / template
func RecordQuestBatch(ctx context.Context, source string, size, rejected int) {
	m := GetMetrics()
	if m == nil {
		return
	}
	m.QuestBatchTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Int("size", size),
	))
	if rejected > 0 {
		m.QuestGuardrailRejects.Add(ctx, int64(rejected))
	}
}
