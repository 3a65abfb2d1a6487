package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// IBMetrics holds the ledger and hierarchy collectors. A nil *IBMetrics is
// valid and records nothing.
type IBMetrics struct {
	// Withdrawals
	WithdrawalsRequestedTotal    prometheus.CounterVec
	WithdrawalsRequestedAmount   prometheus.Counter
	WithdrawalDecisionsTotal     prometheus.CounterVec
	WithdrawalDecidedAmountTotal prometheus.CounterVec
	ApproveDuration              prometheus.Histogram
	PendingWithdrawals           prometheus.Gauge
	OldestPendingAge             prometheus.Gauge

	// Integrity
	IntegrityViolationsTotal prometheus.CounterVec

	// Hierarchy
	DownlineBuildDuration  prometheus.Histogram
	DownlineSize           prometheus.Histogram
	AggregateFailuresTotal prometheus.Counter
	TreeCacheLookupsTotal  prometheus.CounterVec
	EnrollmentsTotal       prometheus.CounterVec

	// Upstream commission ingestion
	CommissionsIngestedTotal prometheus.CounterVec
}

// NewIBMetrics registers the collectors on reg. Pass
// prometheus.DefaultRegisterer in the service and a fresh registry in tests.
func NewIBMetrics(reg prometheus.Registerer) *IBMetrics {
	factory := promauto.With(reg)
	return &IBMetrics{
		WithdrawalsRequestedTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_withdrawals_requested_total",
				Help: "Withdrawal requests by outcome",
			},
			[]string{"outcome"},
		),
		WithdrawalsRequestedAmount: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ib_withdrawals_requested_amount_total",
				Help: "Sum of accepted withdrawal request amounts",
			},
		),
		WithdrawalDecisionsTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_withdrawal_decisions_total",
				Help: "Approve and reject attempts by outcome",
			},
			[]string{"decision", "outcome"},
		),
		WithdrawalDecidedAmountTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_withdrawal_decided_amount_total",
				Help: "Sum of decided withdrawal amounts by final status",
			},
			[]string{"status"},
		),
		ApproveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ib_withdrawal_approve_duration_seconds",
				Help:    "Latency of the approve unit including the balance re-check",
				Buckets: prometheus.DefBuckets,
			},
		),
		PendingWithdrawals: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ib_withdrawals_pending",
				Help: "Withdrawal requests awaiting review",
			},
		),
		OldestPendingAge: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ib_withdrawals_oldest_pending_age_seconds",
				Help: "Age of the oldest withdrawal request awaiting review",
			},
		),
		IntegrityViolationsTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_integrity_violations_total",
				Help: "Integrity violations detected in the ledger or hierarchy",
			},
			[]string{"code"},
		),
		DownlineBuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ib_downline_build_duration_seconds",
				Help:    "Time spent building a downline with aggregates",
				Buckets: prometheus.DefBuckets,
			},
		),
		DownlineSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ib_downline_nodes",
				Help:    "Number of partners returned per downline traversal",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		AggregateFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ib_downline_aggregate_failures_total",
				Help: "Per-node aggregate lookups that failed and were zeroed",
			},
		),
		TreeCacheLookupsTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_tree_cache_lookups_total",
				Help: "Display tree cache lookups by result",
			},
			[]string{"result"},
		),
		EnrollmentsTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_enrollments_total",
				Help: "Referral enrollments and activations by result",
			},
			[]string{"operation", "result"},
		),
		CommissionsIngestedTotal: *factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ib_commissions_ingested_total",
				Help: "Upstream commission events by result",
			},
			[]string{"result"},
		),
	}
}

func (m *IBMetrics) RecordWithdrawalRequested(outcome string, amount float64) {
	if m == nil {
		return
	}
	m.WithdrawalsRequestedTotal.WithLabelValues(outcome).Inc()
	if outcome == "accepted" {
		m.WithdrawalsRequestedAmount.Add(amount)
	}
}

func (m *IBMetrics) RecordDecision(decision, outcome string) {
	if m == nil {
		return
	}
	m.WithdrawalDecisionsTotal.WithLabelValues(decision, outcome).Inc()
}

func (m *IBMetrics) RecordDecidedAmount(status string, amount float64) {
	if m == nil {
		return
	}
	m.WithdrawalDecidedAmountTotal.WithLabelValues(status).Add(amount)
}

func (m *IBMetrics) ObserveApprove(durationSeconds float64) {
	if m == nil {
		return
	}
	m.ApproveDuration.Observe(durationSeconds)
}

func (m *IBMetrics) SetPendingWithdrawals(count int, oldestAgeSeconds float64) {
	if m == nil {
		return
	}
	m.PendingWithdrawals.Set(float64(count))
	m.OldestPendingAge.Set(oldestAgeSeconds)
}

func (m *IBMetrics) RecordIntegrityViolation(code string) {
	if m == nil {
		return
	}
	m.IntegrityViolationsTotal.WithLabelValues(code).Inc()
}

func (m *IBMetrics) ObserveDownlineBuild(durationSeconds float64) {
	if m == nil {
		return
	}
	m.DownlineBuildDuration.Observe(durationSeconds)
}

func (m *IBMetrics) ObserveDownlineSize(nodes int) {
	if m == nil {
		return
	}
	m.DownlineSize.Observe(float64(nodes))
}

func (m *IBMetrics) RecordAggregateFailure() {
	if m == nil {
		return
	}
	m.AggregateFailuresTotal.Inc()
}

func (m *IBMetrics) RecordTreeCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.TreeCacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *IBMetrics) RecordEnrollment(operation, result string) {
	if m == nil {
		return
	}
	m.EnrollmentsTotal.WithLabelValues(operation, result).Inc()
}

func (m *IBMetrics) RecordCommissionIngested(result string) {
	if m == nil {
		return
	}
	m.CommissionsIngestedTotal.WithLabelValues(result).Inc()
}
