package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
)

const defaultPublishTimeout = 10 * time.Second

// WithdrawalPublisher emits withdrawal lifecycle events keyed by partner.
type WithdrawalPublisher struct {
	port    domain.PublisherPort
	topic   string
	timeout time.Duration
}

var _ domain.WithdrawalEventPublisher = (*WithdrawalPublisher)(nil)

func NewWithdrawalPublisher(port domain.PublisherPort, topic string) *WithdrawalPublisher {
	return &WithdrawalPublisher{port: port, topic: topic, timeout: defaultPublishTimeout}
}

func (p *WithdrawalPublisher) PublishWithdrawal(ctx context.Context, event domain.WithdrawalEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal withdrawal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.port.Publish(ctx, p.topic, domain.Message{Key: []byte(event.PartnerID), Value: value}); err != nil {
		return fmt.Errorf("publish %s for %s: %w", event.EventType, event.WithdrawalID, err)
	}
	return nil
}
