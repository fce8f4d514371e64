package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"marketscanner/pkg/logger"
)

const readRetryDelay = time.Second

// Consumer reads messages for a consumer group
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	log := logger.Get().With("component", "kafka_consumer", "topic", cfg.Topic)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: kafka.LastOffset,
	})

	log.Infow("Kafka consumer created", "brokers", cfg.Brokers, "group_id", cfg.GroupID)

	return &Consumer{
		reader: reader,
		log:    log,
	}
}

// MessageHandler processes one message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume reads until ctx is cancelled. Handler errors are logged and the
// message is still committed; a bad request must not block the partition.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Info("Starting consumer")

	for {
		msg, err := c.readMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumer stopped")
				return ctx.Err()
			}
			c.log.Errorf("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(readRetryDelay):
			}
			continue
		}

		c.log.Debugf("Received message: key=%s", string(msg.Key))

		if err := handler(ctx, msg); err != nil {
			c.log.Errorf("Failed to handle message: %v", err)
		}
	}
}

// readMessage checks for shutdown before blocking on the reader
func (c *Consumer) readMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, err
	}

	return msg, nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
