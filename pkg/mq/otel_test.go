package mq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func (c *capturePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return nil
}

func TestInstrumentedChannelKeepsHeaders(t *testing.T) {
	pub := &capturePublisher{}
	ic := NewInstrumentedChannel(pub, "cityclaim-test")

	err := ic.PublishWithContext(context.Background(), "cityclaim.events", "checkin.created", amqp.Publishing{
		MessageId: "m-1",
		Headers:   amqp.Table{"x-origin": "api"},
		Body:      []byte(`{}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "cityclaim.events", pub.exchange)
	assert.Equal(t, "checkin.created", pub.key)
	assert.Equal(t, "api", pub.msg.Headers["x-origin"])
	assert.Equal(t, "m-1", pub.msg.MessageId)
}

func TestHeaderCarrier(t *testing.T) {
	h := HeaderCarrier(amqp.Table{"n": 1})
	h.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", h.Get("traceparent"))
	assert.Equal(t, "", h.Get("n"))
	assert.Len(t, h.Keys(), 2)
}
