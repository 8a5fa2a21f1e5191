package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	kafkago "github.com/segmentio/kafka-go"
)

// Producer is a wrapper around the kafka-go writer
type Producer struct {
	writer *kafkago.Writer
	topic  string
	log    *logger.Logger
}

// Topic returns the topic the producer writes to
func (p *Producer) Topic() string {
	return p.topic
}

// ProduceMessage writes one message and waits for the broker acknowledgement
func (p *Producer) ProduceMessage(ctx context.Context, key []byte, value []byte, headers []MessageHeader) error {
	err := p.writer.WriteMessages(ctx, kafkago.Message{
		Key:     key,
		Value:   value,
		Headers: toKafkaHeaders(headers),
		Time:    time.Now(),
	})
	if err != nil {
		p.log.Errorw("failed to produce message", "error", err)
		return errors.WithType(errors.Wrap(err, "produce message"), errors.ErrorTypeNetwork)
	}
	return nil
}

// ProduceJSON encodes value as JSON and produces it
func (p *Producer) ProduceJSON(ctx context.Context, key []byte, value interface{}, headers []MessageHeader) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.WithType(errors.Wrap(err, "marshal message"), errors.ErrorTypeInternal)
	}

	headers = append(headers, MessageHeader{Key: "content-type", Value: []byte("application/json")})
	return p.ProduceMessage(ctx, key, data, headers)
}

// Close flushes pending writes and closes the writer
func (p *Producer) Close() error {
	p.log.Info("Closing Kafka producer")
	return p.writer.Close()
}
