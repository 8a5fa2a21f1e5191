package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresBrokers(t *testing.T) {
	_, err := NewClient(&Config{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	c, err := NewClient(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, c.config.Brokers)
}

func TestNewProducerAndConsumer(t *testing.T) {
	c, err := NewClient(DefaultConfig())
	require.NoError(t, err)

	_, err = c.NewProducer("")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))

	p, err := c.NewProducer("pricing.results")
	require.NoError(t, err)
	assert.Equal(t, "pricing.results", p.Topic())
	assert.Equal(t, kafkago.RequireAll, p.writer.RequiredAcks)

	noGroup, err := NewClient(&Config{Brokers: []string{"b:9092"}})
	require.NoError(t, err)
	_, err = noGroup.NewConsumer("pricing.requests")
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}

func TestMessageConversion(t *testing.T) {
	msg := fromKafkaMessage(kafkago.Message{
		Topic:   "pricing.requests",
		Key:     []byte("k"),
		Value:   []byte(`{}`),
		Offset:  12,
		Headers: []kafkago.Header{{Key: "request-id", Value: []byte("abc")}},
	})

	v, ok := msg.Header("request-id")
	require.True(t, ok)
	assert.Equal(t, "abc", string(v))
	_, ok = msg.Header("missing")
	assert.False(t, ok)
	assert.Equal(t, int64(12), msg.Offset)

	assert.Nil(t, toKafkaHeaders(nil))
	assert.Len(t, toKafkaHeaders([]MessageHeader{{Key: "a"}, {Key: "b"}}), 2)
}

type fakeReader struct {
	messages  []kafkago.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.messages) == 0 {
		r.cancel()
		return kafkago.Message{}, ctx.Err()
	}
	m := r.messages[0]
	r.messages = r.messages[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func newTestConsumer(offsets ...int64) (*Consumer, *fakeReader, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReader{cancel: cancel}
	for _, o := range offsets {
		r.messages = append(r.messages, kafkago.Message{Topic: "pricing.requests", Offset: o})
	}
	return &Consumer{reader: r, topic: "pricing.requests", backoff: time.Millisecond, log: logger.NewNop()}, r, ctx
}

func TestConsumeMessagesCommitsHandledMessages(t *testing.T) {
	c, r, ctx := newTestConsumer(1, 2)

	var seen []int64
	err := c.ConsumeMessages(ctx, func(_ context.Context, msg *Message) error {
		seen = append(seen, msg.Offset)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, seen)
	assert.Equal(t, []int64{1, 2}, r.committed)
}

func TestConsumeMessagesRetriesHandler(t *testing.T) {
	c, r, ctx := newTestConsumer(7)

	calls := 0
	err := c.ConsumeMessages(ctx, func(context.Context, *Message) error {
		calls++
		if calls < handlerAttempts {
			return errors.Network("broker unavailable")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, handlerAttempts, calls)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumeMessagesStopsWithoutCommitOnPersistentFailure(t *testing.T) {
	c, r, ctx := newTestConsumer(3, 4)

	calls := 0
	err := c.ConsumeMessages(ctx, func(context.Context, *Message) error {
		calls++
		return errors.Network("broker unavailable")
	})

	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNetwork), "got %v", err)
	assert.Contains(t, err.Error(), "offset 3")
	assert.Equal(t, handlerAttempts, calls)
	assert.Empty(t, r.committed)
	assert.Len(t, r.messages, 1)
}
