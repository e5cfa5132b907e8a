package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CityClaim/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	m.Run()
}

type sent struct {
	exchange, key, id string
	body              []byte
}

func recorder(out *[]sent) PublishFunc {
	return func(_ context.Context, exchange, key, id string, body interface{}) error {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		*out = append(*out, sent{exchange, key, id, raw})
		return nil
	}
}

func TestProducerRoutesEvents(t *testing.T) {
	var out []sent
	p := NewProducer(recorder(&out))
	ctx := context.Background()

	require.NoError(t, p.PublishCheckInCreated(ctx, CheckInCreatedMessage{MessageID: "a", CheckInID: 42, UserID: 1}))
	require.NoError(t, p.PublishZoneCaptured(ctx, ZoneCapturedMessage{MessageID: "b", UserID: 1, ZoneID: 3}))
	require.NoError(t, p.PublishQuestGenerate(ctx, QuestGenerateMessage{MessageID: "c", UserID: 1}))

	require.Len(t, out, 3)
	assert.Equal(t, EventsExchange, out[0].exchange)
	assert.Equal(t, RoutingCheckInCreated, out[0].key)
	assert.Contains(t, string(out[0].body), `"check_in_id":"42"`)
	assert.Equal(t, RoutingZoneCaptured, out[1].key)
	assert.Equal(t, RoutingQuestGenerate, out[2].key)
	assert.Equal(t, "c", out[2].id)
}

func TestProducerReturnsPublishError(t *testing.T) {
	boom := stderrors.New("channel closed")
	p := NewProducer(func(context.Context, string, string, string, interface{}) error { return boom })

	err := p.PublishCheckInUndone(context.Background(), CheckInUndoneMessage{MessageID: "x"})
	assert.ErrorIs(t, err, boom)
}

type memMarker struct {
	marks map[string]string
}

func (m *memMarker) TryMark(_ context.Context, id string) (bool, error) {
	if _, ok := m.marks[id]; ok {
		return false, nil
	}
	m.marks[id] = "processing"
	return true, nil
}

func (m *memMarker) Unmark(_ context.Context, id string) error {
	delete(m.marks, id)
	return nil
}

func (m *memMarker) Done(_ context.Context, id string) error {
	m.marks[id] = "completed"
	return nil
}

type countingGenerator struct {
	calls int
	err   error
}

func (g *countingGenerator) HandleGenerateMessage(context.Context, QuestGenerateMessage) error {
	g.calls++
	return g.err
}

func delivery(t *testing.T, msg QuestGenerateMessage) amqp.Delivery {
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return amqp.Delivery{Body: body, MessageId: msg.MessageID}
}

func TestQuestGenerateHandlerDeduplicates(t *testing.T) {
	gen := &countingGenerator{}
	marker := &memMarker{marks: map[string]string{}}
	h := QuestGenerateHandler(gen, marker)
	d := delivery(t, QuestGenerateMessage{MessageID: "m1", UserID: 7, Latitude: 31.2, Longitude: 121.4})

	require.NoError(t, h(context.Background(), d))
	require.NoError(t, h(context.Background(), d))

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "completed", marker.marks["m1"])
}

func TestQuestGenerateHandlerUnmarksOnFailure(t *testing.T) {
	gen := &countingGenerator{err: stderrors.New("db down")}
	marker := &memMarker{marks: map[string]string{}}
	h := QuestGenerateHandler(gen, marker)
	d := delivery(t, QuestGenerateMessage{MessageID: "m2", UserID: 7})

	assert.Error(t, h(context.Background(), d))
	_, marked := marker.marks["m2"]
	assert.False(t, marked)

	gen.err = nil
	require.NoError(t, h(context.Background(), d))
	assert.Equal(t, 2, gen.calls)
}

func TestQuestGenerateHandlerDropsMalformed(t *testing.T) {
	gen := &countingGenerator{}
	h := QuestGenerateHandler(gen, nil)

	assert.NoError(t, h(context.Background(), amqp.Delivery{Body: []byte("{not json")}))
	assert.Equal(t, 0, gen.calls)
}
