package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"CityClaim/pkg/logger"
	"CityClaim/storage/mq"
)

// PublishFunc 发布一条消息到 exchange
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error

// Producer 领域事件发布者，全部发往 EventsExchange
type Producer struct {
	publish PublishFunc
}

// NewProducer publish 为 nil 时使用 RabbitMQ
func NewProducer(publish PublishFunc) *Producer {
	if publish == nil {
		publish = mq.PublishMessage
	}
	return &Producer{publish: publish}
}

var (
	defaultProducer *Producer
	producerOnce    sync.Once
)

// DefaultProducer 基于 storage/mq 的进程级发布者
func DefaultProducer() *Producer {
	producerOnce.Do(func() {
		defaultProducer = NewProducer(nil)
	})
	return defaultProducer
}

// DeclareTopology 声明事件交换机和 worker 队列
func DeclareTopology() error {
	return mq.DeclareTopology(EventsExchange, mq.QueueSpec{
		Name:            QuestGenerateQueue,
		RoutingKey:      RoutingQuestGenerate,
		DeadLetterQueue: QuestGenerateDeadLetterQueue,
	})
}

func (p *Producer) send(ctx context.Context, routingKey, messageID string, body interface{}, fields ...zap.Field) error {
	if err := p.publish(ctx, EventsExchange, routingKey, messageID, body); err != nil {
		logger.L().Error("Failed to publish event",
			append([]zap.Field{
				zap.String("routing_key", routingKey),
				zap.String("message_id", messageID),
				zap.Error(err),
			}, fields...)...,
		)
		return err
	}

	logger.L().Debug("Published event",
		append([]zap.Field{
			zap.String("routing_key", routingKey),
			zap.String("message_id", messageID),
		}, fields...)...,
	)
	return nil
}

// PublishCheckInCreated 打卡成功
func (p *Producer) PublishCheckInCreated(ctx context.Context, msg CheckInCreatedMessage) error {
	return p.send(ctx, RoutingCheckInCreated, msg.MessageID, msg,
		zap.Int64("user_id", msg.UserID),
		zap.Int64("check_in_id", msg.CheckInID),
	)
}

// PublishCheckInUndone 打卡撤销
func (p *Producer) PublishCheckInUndone(ctx context.Context, msg CheckInUndoneMessage) error {
	return p.send(ctx, RoutingCheckInUndone, msg.MessageID, msg,
		zap.Int64("user_id", msg.UserID),
		zap.Int64("check_in_id", msg.CheckInID),
	)
}

// PublishZoneCaptured 新占领区域
func (p *Producer) PublishZoneCaptured(ctx context.Context, msg ZoneCapturedMessage) error {
	return p.send(ctx, RoutingZoneCaptured, msg.MessageID, msg,
		zap.Int64("user_id", msg.UserID),
		zap.Int64("zone_id", msg.ZoneID),
	)
}

// PublishNeighborhoodCaptured 街区完全占领
func (p *Producer) PublishNeighborhoodCaptured(ctx context.Context, msg NeighborhoodCapturedMessage) error {
	return p.send(ctx, RoutingNeighborhoodCaptured, msg.MessageID, msg,
		zap.Int64("user_id", msg.UserID),
		zap.String("neighborhood", msg.Name),
	)
}

// PublishQuestGenerate 请求 worker 生成任务
func (p *Producer) PublishQuestGenerate(ctx context.Context, msg QuestGenerateMessage) error {
	return p.send(ctx, RoutingQuestGenerate, msg.MessageID, msg,
		zap.Int64("user_id", msg.UserID),
	)
}
