package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxRetryBackoff = 30 * time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultKafkaSubscriber consumes with explicit commits: an offset is
// committed only once the handler accepted the message.
type DefaultKafkaSubscriber struct {
	logger       *zap.Logger
	retryBackoff time.Duration
	newReader    func(topic, groupID string) messageReader
}

var _ domain.SubscriberPort = (*DefaultKafkaSubscriber)(nil)

func NewDefaultKafkaSubscriber(brokers []string, logger *zap.Logger) *DefaultKafkaSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultKafkaSubscriber{
		logger:       logger,
		retryBackoff: time.Second,
		newReader: func(topic, groupID string) messageReader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:  brokers,
				Topic:    topic,
				GroupID:  groupID,
				MinBytes: 1,
				MaxBytes: 10e6,
			})
		},
	}
}

func (k *DefaultKafkaSubscriber) Subscribe(ctx context.Context, topic, groupID string, handle domain.MessageHandler) error {
	reader := k.newReader(topic, groupID)
	defer reader.Close()

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch from %s: %w", topic, err)
		}

		if !k.handleWithRetry(ctx, topic, m, handle) {
			return nil
		}

		if err := reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit %s/%d@%d: %w", topic, m.Partition, m.Offset, err)
		}
	}
}

// handleWithRetry reports false when ctx ended before the message was
// accepted.
func (k *DefaultKafkaSubscriber) handleWithRetry(ctx context.Context, topic string, m kafka.Message, handle domain.MessageHandler) bool {
	msg := domain.Message{Key: m.Key, Value: m.Value}
	for attempt := 1; ; attempt++ {
		err := handle(ctx, msg)
		if err == nil {
			return true
		}
		k.logger.Warn("message handling failed, will retry",
			zap.String("topic", topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		timer := time.NewTimer(k.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func (k *DefaultKafkaSubscriber) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * k.retryBackoff
	if d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}
