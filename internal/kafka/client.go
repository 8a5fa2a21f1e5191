package kafka

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rzzdr/options-engine/pkg/utils/errors"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	kafkago "github.com/segmentio/kafka-go"
)

// Client configuration options
type Config struct {
	Brokers      []string
	GroupID      string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	MaxAttempts  int
	MaxWait      time.Duration
}

// Message represents a Kafka message
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   []MessageHeader
}

// MessageHeader represents a Kafka message header
type MessageHeader struct {
	Key   string
	Value []byte
}

// Header returns the value of the first header called key
func (m *Message) Header(key string) ([]byte, bool) {
	for _, h := range m.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

func toKafkaHeaders(headers []MessageHeader) []kafkago.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafkago.Header, len(headers))
	for i, h := range headers {
		out[i] = kafkago.Header{Key: h.Key, Value: h.Value}
	}
	return out
}

func fromKafkaMessage(m kafkago.Message) *Message {
	msg := &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
	}
	for _, h := range m.Headers {
		msg.Headers = append(msg.Headers, MessageHeader{Key: h.Key, Value: h.Value})
	}
	return msg
}

// Client is a factory for producers and consumers sharing one broker config
type Client struct {
	config *Config
	log    *logger.Logger
}

// NewClient creates a new Kafka client
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, errors.InvalidArgument("at least one kafka broker is required")
	}

	return &Client{
		config: config,
		log:    logger.GetLogger("kafka.client"),
	}, nil
}

// DefaultConfig returns a config pointing at a local broker
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		GroupID:      "options-pricer",
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
		MaxAttempts:  5,
		MaxWait:      time.Second,
	}
}

// NewProducer creates a producer for topic
func (c *Client) NewProducer(topic string) (*Producer, error) {
	if topic == "" {
		return nil, errors.InvalidArgument("producer topic is required")
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(c.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: c.config.WriteTimeout,
		ReadTimeout:  c.config.ReadTimeout,
		MaxAttempts:  c.config.MaxAttempts,
		RequiredAcks: kafkago.RequireAll,
	}

	c.log.Infof("Created Kafka producer for topic %s", topic)
	return &Producer{
		writer: w,
		topic:  topic,
		log:    logger.GetLogger("kafka.producer").With("topic", topic),
	}, nil
}

// NewConsumer creates a group consumer for topic
func (c *Client) NewConsumer(topic string) (*Consumer, error) {
	if topic == "" {
		return nil, errors.InvalidArgument("consumer topic is required")
	}
	if c.config.GroupID == "" {
		return nil, errors.InvalidArgument("consumer group id is required")
	}

	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  c.config.Brokers,
		GroupID:  c.config.GroupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  c.config.MaxWait,
	})

	c.log.Infof("Created Kafka consumer for topic %s in group %s", topic, c.config.GroupID)
	return &Consumer{
		reader:  r,
		topic:   topic,
		backoff: 500 * time.Millisecond,
		log:     logger.GetLogger("kafka.consumer").With("topic", topic),
	}, nil
}

// EnsureTopicExists creates topic on the cluster controller if it is missing
func (c *Client) EnsureTopicExists(ctx context.Context, topic string, partitions int, replicationFactor int) error {
	conn, err := kafkago.DialContext(ctx, "tcp", c.config.Brokers[0])
	if err != nil {
		return errors.WithType(errors.Wrap(err, "dial kafka broker"), errors.ErrorTypeNetwork)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return errors.WithType(errors.Wrap(err, "find kafka controller"), errors.ErrorTypeNetwork)
	}

	dialer := &kafkago.Dialer{Timeout: c.config.WriteTimeout}
	ctrl, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return errors.WithType(errors.Wrap(err, "dial kafka controller"), errors.ErrorTypeNetwork)
	}
	defer ctrl.Close()

	err = ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return errors.Wrapf(err, "create topic %s", topic)
	}

	c.log.Infof("Topic %s is available", topic)
	return nil
}
