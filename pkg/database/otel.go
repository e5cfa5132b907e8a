package database

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type instruments struct {
	queries  metric.Int64Counter
	duration metric.Float64Histogram
}

var dbMetrics *instruments

// InitDatabaseMetrics 未调用时插件只产生 span
func InitDatabaseMetrics(meter metric.Meter) error {
	var (
		m   instruments
		err error
	)
	if m.queries, err = meter.Int64Counter("db.queries.total",
		metric.WithDescription("SQL statements by operation, table and outcome"),
		metric.WithUnit("{query}")); err != nil {
		return err
	}
	if m.duration, err = meter.Float64Histogram("db.query.duration",
		metric.WithDescription("SQL statement latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5)); err != nil {
		return err
	}
	dbMetrics = &m
	return nil
}

const (
	pluginName   = "cityclaim:otel"
	stmtKey      = "cityclaim:otel_stmt"
	maxSQLLength = 500
)

// stmtTrace 挂在 gorm 语句实例上，before 写入 after 取出
type stmtTrace struct {
	span  trace.Span
	start time.Time
}

// tracingPlugin 给每条 SQL 打 client span，语句只保留结构不带字面量
type tracingPlugin struct {
	tracer trace.Tracer
}

func (p *tracingPlugin) Name() string {
	return pluginName
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	type register func(name string, fn func(*gorm.DB)) error
	cb := db.Callback()
	stages := []struct {
		name          string
		before, after register
	}{
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, st := range stages {
		if err := st.before("otel:before_"+st.name, p.before); err != nil {
			return err
		}
		if err := st.after("otel:after_"+st.name, p.after); err != nil {
			return err
		}
	}
	return nil
}

func (p *tracingPlugin) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := p.tracer.Start(ctx, "db "+tableOrUnknown(db), trace.WithSpanKind(trace.SpanKindClient))
	db.Statement.Context = ctx
	db.InstanceSet(stmtKey, stmtTrace{span: span, start: time.Now()})
}

func (p *tracingPlugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(stmtKey)
	if !ok {
		return
	}
	st, ok := v.(stmtTrace)
	if !ok {
		return
	}
	defer st.span.End()

	sql := db.Statement.SQL.String()
	op := operationName(sql)
	table := tableOrUnknown(db)
	if len(sql) > maxSQLLength {
		sql = sql[:maxSQLLength] + "..."
	}

	st.span.SetName(op)
	st.span.SetAttributes(
		attribute.String("db.system", db.Dialector.Name()),
		attribute.String("db.sql.table", table),
		semconv.DBStatement(sanitizeSQL(sql)),
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
	)

	// 查不到记录是正常分支，不算失败
	outcome := "ok"
	if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		outcome = "error"
		st.span.RecordError(err)
		st.span.SetStatus(codes.Error, err.Error())
	}

	if m := dbMetrics; m != nil {
		set := metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("table", table),
			attribute.String("outcome", outcome),
		)
		m.queries.Add(db.Statement.Context, 1, set)
		m.duration.Record(db.Statement.Context, time.Since(st.start).Seconds(), set)
	}
}

func tableOrUnknown(db *gorm.DB) string {
	if db.Statement.Table == "" {
		return "unknown"
	}
	return db.Statement.Table
}

// operationName 取 SQL 的第一个关键字
func operationName(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return "db." + strings.ToLower(op)
		}
	}
	if sql == "" {
		return "db.unknown"
	}
	return "db.query"
}

var literalPattern = regexp.MustCompile(`'[^']*'`)

// sanitizeSQL 去掉字符串字面量，只保留语句结构
func sanitizeSQL(sql string) string {
	return literalPattern.ReplaceAllString(sql, "'?'")
}

// WithDefaultOTELPlugin 挂载追踪插件，serviceName 为空时用 cityclaim
func WithDefaultOTELPlugin(db *gorm.DB, serviceName string) error {
	if serviceName == "" {
		serviceName = "cityclaim"
	}
	return db.Use(&tracingPlugin{
		tracer: otel.Tracer(serviceName + "/gorm"),
	})
}
