package mq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"CityClaim/config"
	mqotel "CityClaim/pkg/mq"
	"CityClaim/pkg/logger"
)

// MessageHandler 处理一条消息，返回 error 时 nack
type MessageHandler func(ctx context.Context, d amqp.Delivery) error

type ConsumeOptions struct {
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	Handler       MessageHandler
}

// Consume 阻塞消费直到 ctx 结束或 channel 关闭。
// 第一次失败重新入队，重投后仍失败则进入死信队列。
func Consume(ctx context.Context, opts ConsumeOptions) error {
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if opts.PrefetchCount > 0 {
		if err := ch.Qos(opts.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := ch.Consume(
		opts.Queue,
		opts.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logger.L().Info("Started consuming messages",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("prefetch_count", opts.PrefetchCount),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}
			handle(ctx, opts, d)
		}
	}
}

func handle(ctx context.Context, opts ConsumeOptions, d amqp.Delivery) {
	msgCtx, span := mqotel.StartConsumeSpan(ctx, config.Cfg.ServiceName, d)
	defer span.End()

	start := time.Now()
	err := opts.Handler(msgCtx, d)
	mqotel.RecordHandled(msgCtx, d.RoutingKey, err, time.Since(start))

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			logger.L().Warn("Failed to ack message", zap.String("message_id", d.MessageId), zap.Error(ackErr))
		}
		return
	}

	span.RecordError(err)
	logger.Ctx(msgCtx).Error("Failed to process message",
		zap.String("queue", opts.Queue),
		zap.String("message_id", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
		zap.Error(err),
	)
	if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
		logger.L().Warn("Failed to nack message", zap.String("message_id", d.MessageId), zap.Error(nackErr))
	}
}
