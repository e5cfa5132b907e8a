package otel

import (
	"fmt"

	"go.opentelemetry.io/otel"

	dbotel "CityClaim/pkg/database"
	"CityClaim/pkg/metrics"
	mqotel "CityClaim/pkg/mq"
	redisotel "CityClaim/pkg/redis"
)

// InitInstruments 注册引擎与各存储层的指标，需要在 InitOpenTelemetry 之后调用
func InitInstruments() error {
	if err := metrics.InitMetrics(); err != nil {
		return fmt.Errorf("engine metrics: %w", err)
	}
	if err := dbotel.InitDatabaseMetrics(otel.Meter("cityclaim/db")); err != nil {
		return fmt.Errorf("database metrics: %w", err)
	}
	if err := redisotel.InitRedisMetrics(otel.Meter("cityclaim/redis")); err != nil {
		return fmt.Errorf("redis metrics: %w", err)
	}
	if err := mqotel.InitMQMetrics(otel.Meter("cityclaim/mq")); err != nil {
		return fmt.Errorf("mq metrics: %w", err)
	}
	return nil
}
