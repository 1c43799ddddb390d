package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/gamerec/internal/config"
	"github.com/temcen/gamerec/pkg/models"
)

const (
	defaultRetryDelay = time.Second
	maxReadBackoff    = 30 * time.Second
)

// RefreshHandler rebuilds the models for one refresh event.
type RefreshHandler func(ctx context.Context, event models.SnapshotRefreshEvent) error

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// SnapshotBus carries snapshot-refresh events between the admin API and the
// model builders. Failed events are retried with exponential backoff and then
// parked on the dead-letter topic.
type SnapshotBus struct {
	writer     messageWriter
	reader     messageReader
	dlqWriter  messageWriter
	topic      string
	dlqTopic   string
	maxRetries int
	retryDelay time.Duration
	logger     *logrus.Logger
}

func NewSnapshotBus(cfg *config.Config, logger *logrus.Logger) (*SnapshotBus, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are not configured")
	}

	topic := cfg.Kafka.Topics.SnapshotRefresh
	dlqTopic := cfg.Kafka.Topics.SnapshotRefreshDLQ

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          topic,
		GroupID:        ConsumerGroupID(cfg.Kafka),
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        dlqTopic,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return newSnapshotBus(writer, reader, dlqWriter, topic, dlqTopic, cfg.Kafka.MaxRetries, logger), nil
}

func newSnapshotBus(writer messageWriter, reader messageReader, dlqWriter messageWriter,
	topic, dlqTopic string, maxRetries int, logger *logrus.Logger) *SnapshotBus {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &SnapshotBus{
		writer:     writer,
		reader:     reader,
		dlqWriter:  dlqWriter,
		topic:      topic,
		dlqTopic:   dlqTopic,
		maxRetries: maxRetries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
}

// PublishRefresh enqueues a refresh request and returns its event.
func (b *SnapshotBus) PublishRefresh(ctx context.Context, source, requestedBy string) (*models.SnapshotRefreshEvent, error) {
	event := models.SnapshotRefreshEvent{
		EventID:     uuid.New(),
		Source:      source,
		RequestedBy: requestedBy,
		RequestedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal refresh event: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(source),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "source", Value: []byte(source)},
			{Key: "timestamp", Value: []byte(event.RequestedAt.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := b.writer.WriteMessages(ctx, message); err != nil {
		b.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to publish refresh event to Kafka")
		return nil, fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"source":   source,
		"topic":    b.topic,
	}).Info("Refresh event published to Kafka")

	return &event, nil
}

// ConsumeRefresh blocks, handing every refresh event to handler until ctx is
// done or the reader is closed.
func (b *SnapshotBus) ConsumeRefresh(ctx context.Context, handler RefreshHandler) error {
	readFailures := 0
	for {
		message, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}

			readFailures++
			delay := b.readBackoff(readFailures)
			b.logger.WithError(err).WithFields(logrus.Fields{
				"failures": readFailures,
				"delay":    delay,
			}).Error("Failed to read message from Kafka")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}
		readFailures = 0

		var event models.SnapshotRefreshEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			b.logger.WithError(err).WithField("offset", message.Offset).Error("Failed to unmarshal refresh event")
			if dlqErr := b.sendRawToDLQ(ctx, message, err); dlqErr != nil {
				b.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
			continue
		}

		if err := b.processWithRetry(ctx, event, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.WithError(err).WithField("event_id", event.EventID).Error("Failed to process refresh event after retries")
			if dlqErr := b.sendToDLQ(ctx, event, err); dlqErr != nil {
				b.logger.WithError(dlqErr).Error("Failed to send message to DLQ")
			}
		}
	}
}

// readBackoff doubles the retry delay per consecutive read failure, up to
// maxReadBackoff.
func (b *SnapshotBus) readBackoff(failures int) time.Duration {
	delay := b.retryDelay
	for i := 1; i < failures && delay < maxReadBackoff; i++ {
		delay *= 2
	}
	if delay > maxReadBackoff {
		delay = maxReadBackoff
	}
	return delay
}

func (b *SnapshotBus) processWithRetry(ctx context.Context, event models.SnapshotRefreshEvent, handler RefreshHandler) error {
	for attempt := 0; attempt <= b.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := b.retryDelay * time.Duration(1<<uint(attempt-1))
			b.logger.WithFields(logrus.Fields{
				"event_id": event.EventID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying refresh event")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		event.RetryCount = attempt
		if err := handler(ctx, event); err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": event.EventID,
				"attempt":  attempt,
			}).Warn("Refresh event processing failed")

			if attempt == b.maxRetries {
				return fmt.Errorf("max retries exceeded: %w", err)
			}
			continue
		}

		b.logger.WithFields(logrus.Fields{
			"event_id": event.EventID,
			"attempt":  attempt,
		}).Info("Refresh event processed successfully")
		return nil
	}

	return fmt.Errorf("unexpected retry loop exit")
}

func (b *SnapshotBus) sendToDLQ(ctx context.Context, event models.SnapshotRefreshEvent, originalError error) error {
	dlqMessage := map[string]interface{}{
		"original_message": event,
		"error":            originalError.Error(),
		"dlq_timestamp":    time.Now(),
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(event.EventID.String()),
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "original_topic", Value: []byte(b.topic)},
			{Key: "error", Value: []byte(originalError.Error())},
		},
	}

	if err := b.dlqWriter.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"topic":    b.dlqTopic,
		"error":    originalError.Error(),
	}).Warn("Refresh event sent to DLQ")

	return nil
}

// sendRawToDLQ parks a message that could not be decoded at all.
func (b *SnapshotBus) sendRawToDLQ(ctx context.Context, original kafka.Message, decodeError error) error {
	message := kafka.Message{
		Key:   original.Key,
		Value: original.Value,
		Headers: []kafka.Header{
			{Key: "original_topic", Value: []byte(b.topic)},
			{Key: "error", Value: []byte(decodeError.Error())},
		},
	}

	if err := b.dlqWriter.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write message to DLQ: %w", err)
	}
	return nil
}

func (b *SnapshotBus) Close() error {
	var errs []error

	if err := b.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}

	if err := b.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}

	if err := b.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing snapshot bus: %v", errs)
	}

	return nil
}

// ConsumerStats is a point-in-time view of the refresh consumer.
type ConsumerStats struct {
	Lag        int64 `json:"lag"`
	Offset     int64 `json:"offset"`
	Messages   int64 `json:"messages"`
	Errors     int64 `json:"errors"`
	Rebalances int64 `json:"rebalances"`
}

type statsReader interface {
	Stats() kafka.ReaderStats
}

// ConsumerStats reports the refresh consumer's position. The second result is
// false when the reader does not expose statistics.
func (b *SnapshotBus) ConsumerStats() (ConsumerStats, bool) {
	reader, ok := b.reader.(statsReader)
	if !ok {
		return ConsumerStats{}, false
	}
	stats := reader.Stats()
	return ConsumerStats{
		Lag:        stats.Lag,
		Offset:     stats.Offset,
		Messages:   stats.Messages,
		Errors:     stats.Errors,
		Rebalances: stats.Rebalances,
	}, true
}

// ConsumerGroupID returns the group this process reads refresh events with.
// Every instance holds its own model, so each needs its own copy of every
// event: the group is suffixed with the instance ID.
func ConsumerGroupID(cfg config.KafkaConfig) string {
	instance := cfg.InstanceID
	if instance == "" {
		instance, _ = os.Hostname()
	}
	if instance == "" {
		instance = uuid.NewString()
	}
	return cfg.ConsumerGroup + "-" + instance
}
