package background

import (
	"context"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/metrics"
	withdrawaldto "github.com/LavaJover/shvark-ib-service/internal/usecase/dto/withdrawal"
	"github.com/LavaJover/shvark-ib-service/internal/usecase/ledger"
	"go.uber.org/zap"
)

const (
	defaultMonitorInterval = time.Minute
	defaultStaleAfter      = 24 * time.Hour
)

type BackgroundTasks struct {
	LedgerUsecase ledger.LedgerUsecase
	Metrics       *metrics.IBMetrics
	Logger        *zap.Logger
	Interval      time.Duration
	StaleAfter    time.Duration
	Now           func() time.Time
}

func NewBackgroundTasks(ledgerUc ledger.LedgerUsecase, ibMetrics *metrics.IBMetrics, logger *zap.Logger) *BackgroundTasks {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackgroundTasks{
		LedgerUsecase: ledgerUc,
		Metrics:       ibMetrics,
		Logger:        logger,
		Interval:      defaultMonitorInterval,
		StaleAfter:    defaultStaleAfter,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	go bt.startPendingWithdrawalMonitor(ctx)
}

func (bt *BackgroundTasks) startPendingWithdrawalMonitor(ctx context.Context) {
	ticker := time.NewTicker(bt.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := bt.CheckPendingWithdrawals(ctx); err != nil {
				bt.Logger.Warn("pending withdrawal check failed", zap.Error(err))
			}
		}
	}
}

// CheckPendingWithdrawals refreshes the review backlog gauges and returns
// the requests that have waited longer than StaleAfter, oldest first.
func (bt *BackgroundTasks) CheckPendingWithdrawals(ctx context.Context) ([]*withdrawaldto.WithdrawalOutput, error) {
	now := bt.Now()
	backlog, err := bt.LedgerUsecase.PendingBacklog(ctx, now.Add(-bt.StaleAfter))
	if err != nil {
		return nil, err
	}

	var oldest time.Duration
	if backlog.OldestCreatedAt != nil {
		oldest = now.Sub(*backlog.OldestCreatedAt)
	}
	bt.Metrics.SetPendingWithdrawals(backlog.Count, oldest.Seconds())

	if backlog.StaleCount > 0 {
		fields := []zap.Field{
			zap.Int("count", backlog.StaleCount),
			zap.Duration("oldest_age", oldest),
		}
		if len(backlog.Stale) > 0 {
			fields = append(fields, zap.String("oldest_reference", backlog.Stale[0].Reference))
		}
		bt.Logger.Warn("withdrawal requests awaiting review too long", fields...)
	}
	return backlog.Stale, nil
}
