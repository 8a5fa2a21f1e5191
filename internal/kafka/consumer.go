package kafka

import (
	"context"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageHandler is a function that processes Kafka messages
type MessageHandler func(ctx context.Context, msg *Message) error

// handlerAttempts bounds how often a failing handler is retried before the
// loop gives up on a message
const handlerAttempts = 3

// messageReader is the part of *kafkago.Reader the consumer loop uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Consumer wraps a kafka-go group reader
type Consumer struct {
	reader  messageReader
	topic   string
	backoff time.Duration
	log     *logger.Logger
}

// Topic returns the topic the consumer reads from
func (c *Consumer) Topic() string {
	return c.topic
}

// ConsumeMessages fetches messages until ctx is done and commits each offset
// once the handler succeeds. A handler that still fails after handlerAttempts
// stops the loop with its error and leaves the offset uncommitted, so the
// message is redelivered when the group resumes.
func (c *Consumer) ConsumeMessages(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consumer loop")
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer loop stopped")
				return nil
			}
			c.log.Errorw("failed to fetch message", "error", err)
			if !c.wait(ctx, time.Second) {
				return nil
			}
			continue
		}

		if err := c.handle(ctx, handler, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "message at partition %d offset %d", m.Partition, m.Offset)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorw("failed to commit offset", "error", err, "offset", m.Offset)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler MessageHandler, m kafkago.Message) error {
	msg := fromKafkaMessage(m)
	var err error
	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		c.log.Errorw("message handler failed", "error", err, "attempt", attempt,
			"partition", m.Partition, "offset", m.Offset)
		if attempt < handlerAttempts && !c.wait(ctx, c.backoff*time.Duration(attempt)) {
			return ctx.Err()
		}
	}
	return err
}

func (c *Consumer) wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Close closes the reader and leaves the group
func (c *Consumer) Close() error {
	c.log.Info("Closing Kafka consumer")
	if err := c.reader.Close(); err != nil {
		return errors.Wrap(err, "close reader")
	}
	return nil
}
