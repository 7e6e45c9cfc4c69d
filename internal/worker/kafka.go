package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/khaeldev/transaction-service/internal/metrics"
)

// Publisher sends a payload to a topic of the event log. Key selects the
// partition so all events of one transaction stay ordered.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Handler processes one consumed message. A nil return means the message
// is done (including deliberately dropped messages) and its offset may be
// committed; an error leaves the offset uncommitted and the message is
// retried in place.
type Handler func(ctx context.Context, payload []byte) error

// KafkaPublisher implements Publisher on a shared kafka-go writer.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers. The broker
// may still be starting; connectivity errors surface per publish and the
// writer redials on its own.
func NewKafkaPublisher(brokers []string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: writer, logger: logger.Named("publisher")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", topic, err)
	}

	p.logger.Debug("published message", zap.String("topic", topic), zap.String("key", key))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// messageSource is the slice of kafka.Reader the consumer needs. Tests
// substitute a fake source for the broker.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic with its own consumer group cursor and hands
// every message to a Handler. The offset is committed only after the
// handler returns nil, giving at-least-once delivery. Consumers for
// different paths never share state; coordination happens in the store
// and the cache.
type Consumer struct {
	source   messageSource
	handle   Handler
	topic    string
	retryMin time.Duration
	retryMax time.Duration
	logger   *zap.Logger
}

// NewConsumer creates a consumer group reader for topic.
func NewConsumer(brokers []string, groupID, topic string, handle Handler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return &Consumer{
		source:   reader,
		handle:   handle,
		topic:    topic,
		retryMin: time.Second,
		retryMax: 30 * time.Second,
		logger:   logger.Named("consumer").With(zap.String("topic", topic), zap.String("group", groupID)),
	}
}

// Run consumes until ctx is cancelled. An in-flight handler call finishes
// before the loop observes cancellation, and no offset is committed for a
// failed message. Group offsets are cumulative, so committing any later
// message would silently discard an earlier failure on the partition; a
// failing message is therefore retried in place with backoff and blocks
// its partition until it succeeds or the consumer shuts down. There is no
// dead-letter topic yet, so head-of-line blocking is the price of never
// losing a message.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.source.Close()

	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopping")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}
		metrics.EventsConsumedTotal.WithLabelValues(c.topic).Inc()

		c.logger.Debug("received message",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))

		if err := c.process(ctx, msg); err != nil {
			// Cancelled mid-retry; the uncommitted message is
			// redelivered to the next consumer of the group.
			return nil
		}

		if err := c.source.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("failed to commit offset",
				zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// process runs the handler until it returns nil or ctx is cancelled,
// doubling the delay between attempts up to retryMax.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	delay := c.retryMin
	for {
		err := c.handle(ctx, msg.Value)
		if err == nil {
			return nil
		}
		metrics.EventsFailedTotal.WithLabelValues(c.topic).Inc()
		c.logger.Error("failed to process message, retrying",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset),
			zap.Duration("retryIn", delay), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > c.retryMax {
			delay = c.retryMax
		}
	}
}
