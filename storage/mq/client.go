package mq

import (
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"CityClaim/config"
	"CityClaim/pkg/logger"
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

// Init 建立连接并声明拓扑
func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			return
		}

		logger.L().Info("RabbitMQ connected")
	})

	return connErr
}

// Connection 返回已建立的连接，未初始化时为 nil
func Connection() *amqp.Connection {
	return conn
}

// Close 关闭连接
func Close() error {
	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// QueueSpec 一个持久化队列及其绑定，DeadLetterQueue 非空时失败消息转入该队列
type QueueSpec struct {
	Name            string
	RoutingKey      string
	DeadLetterQueue string
}

// DeclareTopology 声明 topic 交换机和队列，幂等
func DeclareTopology(exchange string, queues ...QueueSpec) error {
	if conn == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	for _, q := range queues {
		var args amqp.Table
		if q.DeadLetterQueue != "" {
			if _, err := ch.QueueDeclare(q.DeadLetterQueue, true, false, false, false, nil); err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", q.DeadLetterQueue, err)
			}
			args = amqp.Table{
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": q.DeadLetterQueue,
			}
		}

		if _, err := ch.QueueDeclare(q.Name, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.Name, err)
		}
		if err := ch.QueueBind(q.Name, q.RoutingKey, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", q.Name, err)
		}
	}

	logger.L().Info("RabbitMQ topology declared",
		zap.String("exchange", exchange),
		zap.Int("queues", len(queues)),
	)
	return nil
}
