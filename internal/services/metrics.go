package services

import (
	"strings"

	"github.com/dropvault/backend/internal/types"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Adjustments          *prometheus.CounterVec
	TxRetries            prometheus.Counter
	Unlocks              *prometheus.CounterVec
	AccessDecisions      *prometheus.CounterVec
	AccessEventFailures  prometheus.Counter
	NotificationsCreated prometheus.Counter
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		Adjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_adjustments_total",
				Help: "Total balance adjustments by entry type and outcome.",
			},
			[]string{"type", "status"},
		),
		TxRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_tx_retries_total",
				Help: "Total store transaction retries after a conflict.",
			},
		),
		Unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_unlocks_total",
				Help: "Total content unlock attempts by outcome.",
			},
			[]string{"status"},
		),
		AccessDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_access_decisions_total",
				Help: "Total content access decisions by outcome.",
			},
			[]string{"decision"},
		),
		AccessEventFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_access_event_failures_total",
				Help: "Total access counter increments that failed.",
			},
		),
		NotificationsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notifications_published_total",
				Help: "Total notifications published.",
			},
		),
	}

	registry.MustRegister(
		m.Adjustments,
		m.TxRetries,
		m.Unlocks,
		m.AccessDecisions,
		m.AccessEventFailures,
		m.NotificationsCreated,
	)
	return m
}

func (m *Metrics) ObserveAdjustment(entryType, status string) {
	if m == nil {
		return
	}
	m.Adjustments.WithLabelValues(entryType, status).Inc()
}

// IncTxRetry matches repository.RetryPolicy.OnRetry
func (m *Metrics) IncTxRetry(int) {
	if m == nil {
		return
	}
	m.TxRetries.Inc()
}

func (m *Metrics) ObserveUnlock(status string) {
	if m == nil {
		return
	}
	m.Unlocks.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveAccess(decision string) {
	if m == nil {
		return
	}
	m.AccessDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncAccessEventFailure() {
	if m == nil {
		return
	}
	m.AccessEventFailures.Inc()
}

func (m *Metrics) IncNotificationPublished() {
	if m == nil {
		return
	}
	m.NotificationsCreated.Inc()
}

// statusLabel turns an operation error into a low-cardinality label
func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(string(types.CodeOf(err)))
}
