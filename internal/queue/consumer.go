package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"CityClaim/internal/cache"
	"CityClaim/pkg/logger"
	"CityClaim/storage/mq"
)

// QuestGenerator worker 侧的任务生成入口
type QuestGenerator interface {
	HandleGenerateMessage(ctx context.Context, msg QuestGenerateMessage) error
}

// MessageMarker 基于消息 ID 的去重标记
type MessageMarker interface {
	TryMark(ctx context.Context, messageID string) (bool, error)
	Unmark(ctx context.Context, messageID string) error
	Done(ctx context.Context, messageID string) error
}

// NewRedisMarker 处理中标记的 TTL 为 ttl，处理完成后保留两天
func NewRedisMarker(queue string, ttl time.Duration) MessageMarker {
	return cache.NewMessageMarks(queue, ttl, 48*time.Hour)
}

// QuestGenerateHandler 解析消息并去重，重复消息直接 ack
func QuestGenerateHandler(gen QuestGenerator, marker MessageMarker) mq.MessageHandler {
	return func(ctx context.Context, d amqp.Delivery) error {
		var msg QuestGenerateMessage
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			// 格式错误的消息重投也不会成功
			logger.L().Error("Dropping malformed quest.generate message",
				zap.String("message_id", d.MessageId),
				zap.Error(err),
			)
			return nil
		}
		if msg.MessageID == "" {
			msg.MessageID = d.MessageId
		}

		if marker != nil && msg.MessageID != "" {
			first, err := marker.TryMark(ctx, msg.MessageID)
			if err != nil {
				// 去重失败不阻塞业务，可能重复生成
				logger.L().Warn("Failed to check message processed status",
					zap.String("message_id", msg.MessageID),
					zap.Error(err),
				)
			} else if !first {
				logger.L().Info("Message already processed or being processed, skipping",
					zap.String("message_id", msg.MessageID),
				)
				return nil
			}
		}

		if err := gen.HandleGenerateMessage(ctx, msg); err != nil {
			if marker != nil && msg.MessageID != "" {
				if uerr := marker.Unmark(ctx, msg.MessageID); uerr != nil {
					logger.L().Warn("Failed to unmark message", zap.String("message_id", msg.MessageID), zap.Error(uerr))
				}
			}
			return fmt.Errorf("generate quests for user %d: %w", msg.UserID, err)
		}

		if marker != nil && msg.MessageID != "" {
			if err := marker.Done(ctx, msg.MessageID); err != nil {
				logger.L().Warn("Failed to mark message processed", zap.String("message_id", msg.MessageID), zap.Error(err))
			}
		}
		return nil
	}
}

// StartQuestGenerateConsumer 阻塞消费 quest.generate，ctx 取消后返回
func StartQuestGenerateConsumer(ctx context.Context, gen QuestGenerator, prefetch int) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:         QuestGenerateQueue,
		ConsumerTag:   "quest-generate-worker",
		PrefetchCount: prefetch,
		Handler:       QuestGenerateHandler(gen, NewRedisMarker(QuestGenerateQueue, 10*time.Minute)),
	})
}
