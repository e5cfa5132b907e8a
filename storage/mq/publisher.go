package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"CityClaim/config"
	mqotel "CityClaim/pkg/mq"
	"CityClaim/pkg/logger"
)

// pubChannel 所有发布共用一个 channel，被 broker 关闭后下次发布时重开
type pubChannel struct {
	mu sync.Mutex
	ch *amqp.Channel
}

var publisher pubChannel

func (p *pubChannel) get() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("rabbitmq: no open connection")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open publish channel: %w", err)
	}
	p.ch = ch
	go p.watch(ch, ch.NotifyClose(make(chan *amqp.Error, 1)))
	return ch, nil
}

func (p *pubChannel) watch(ch *amqp.Channel, closed <-chan *amqp.Error) {
	reason, ok := <-closed

	p.mu.Lock()
	if p.ch == ch {
		p.ch = nil
	}
	p.mu.Unlock()

	if ok && reason != nil {
		logger.L().Warn("Publish channel closed by broker",
			zap.Int("code", reason.Code),
			zap.String("reason", reason.Reason),
		)
	}
}

// PublishMessage body 编码为 JSON，持久化投递
func PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode %s: %w", routingKey, err)
	}

	ch, err := publisher.get()
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}
	if err := mqotel.NewInstrumentedChannel(ch, config.Cfg.ServiceName).
		PublishWithContext(ctx, exchange, routingKey, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", routingKey, err)
	}
	return nil
}
