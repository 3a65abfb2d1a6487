package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
)

type CommissionIngester interface {
	IngestCommission(ctx context.Context, entry *domain.CommissionEntry) (bool, error)
}

const defaultUnknownPartnerGrace = 15 * time.Minute

// CommissionConsumer feeds upstream commission events into the ledger.
// Malformed or rejected events are logged and skipped; transient failures
// are handed back to the subscriber for redelivery. An event for a partner
// the store does not know yet is redelivered until it is older than
// UnknownPartnerGrace.
type CommissionConsumer struct {
	Subscriber domain.SubscriberPort
	Ledger     CommissionIngester
	Topic      string
	GroupID    string
	Logger     *zap.Logger

	UnknownPartnerGrace time.Duration
	Now                 func() time.Time
}

func NewCommissionConsumer(sub domain.SubscriberPort, ledger CommissionIngester, topic, groupID string, logger *zap.Logger) *CommissionConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommissionConsumer{
		Subscriber: sub,
		Ledger:     ledger,
		Topic:      topic,
		GroupID:    groupID,
		Logger:     logger,

		UnknownPartnerGrace: defaultUnknownPartnerGrace,
		Now:                 func() time.Time { return time.Now().UTC() },
	}
}

func (c *CommissionConsumer) Run(ctx context.Context) error {
	c.Logger.Info("commission consumer started", zap.String("topic", c.Topic), zap.String("group_id", c.GroupID))
	return c.Subscriber.Subscribe(ctx, c.Topic, c.GroupID, c.Handle)
}

func (c *CommissionConsumer) Handle(ctx context.Context, msg domain.Message) error {
	var event CommissionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.Logger.Error("dropping malformed commission event",
			zap.ByteString("key", msg.Key),
			zap.Error(err),
		)
		return nil
	}

	added, err := c.Ledger.IngestCommission(ctx, event.ToDomain())
	if err != nil {
		if retryable(err) {
			return err
		}
		if errors.Is(err, domain.ErrPartnerNotFound) && c.withinGrace(event.CreatedAt) {
			c.Logger.Warn("commission for unknown partner, awaiting redelivery",
				zap.String("commission_id", event.CommissionID),
				zap.String("partner_id", event.PartnerID),
			)
			return err
		}
		c.Logger.Error("dropping rejected commission event",
			zap.String("commission_id", event.CommissionID),
			zap.String("partner_id", event.PartnerID),
			zap.Error(err),
		)
		return nil
	}
	if added {
		c.Logger.Debug("commission ingested",
			zap.String("commission_id", event.CommissionID),
			zap.String("partner_id", event.PartnerID),
		)
	}
	return nil
}

func (c *CommissionConsumer) withinGrace(createdAt time.Time) bool {
	if createdAt.IsZero() {
		return false
	}
	return c.Now().Sub(createdAt) < c.UnknownPartnerGrace
}

// retryable treats transient store failures and untyped errors as worth
// another delivery.
func retryable(err error) bool {
	var de *domain.Error
	if !errors.As(err, &de) {
		return true
	}
	return de.Kind == domain.KindTransient
}
