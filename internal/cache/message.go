package cache

import (
	"context"
	"fmt"
	"time"

	"CityClaim/storage/redis"
)

// 消息去重状态
const (
	markProcessing = "processing"
	markCompleted  = "completed"
)

// MessageMarks 以消息 ID 为键的去重标记。
// 处理中的标记 TTL 较短，worker 崩溃后消息可以被重新投递处理；
// 完成后的标记保留 doneTTL，覆盖 RabbitMQ 的重投窗口
type MessageMarks struct {
	prefix        string
	processingTTL time.Duration
	doneTTL       time.Duration
}

func NewMessageMarks(queue string, processingTTL, doneTTL time.Duration) *MessageMarks {
	if doneTTL <= 0 {
		doneTTL = 48 * time.Hour
	}
	return &MessageMarks{
		prefix:        "msg:" + queue,
		processingTTL: processingTTL,
		doneTTL:       doneTTL,
	}
}

func (m *MessageMarks) key(messageID string) string {
	return redis.Key(m.prefix, messageID)
}

// TryMark SETNX 抢占，false 表示重复消息或其他 worker 正在处理
func (m *MessageMarks) TryMark(ctx context.Context, messageID string) (bool, error) {
	ok, err := redis.Client().SetNX(ctx, m.key(messageID), markProcessing, m.processingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark message %s: %w", messageID, err)
	}
	return ok, nil
}

// Unmark 处理失败时释放，让重投的消息能再次进入
func (m *MessageMarks) Unmark(ctx context.Context, messageID string) error {
	return redis.Client().Del(ctx, m.key(messageID)).Err()
}

func (m *MessageMarks) Done(ctx context.Context, messageID string) error {
	return redis.Client().Set(ctx, m.key(messageID), markCompleted, m.doneTTL).Err()
}
