package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts money-moving operations and their outcomes.
type SettlementMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	entries    prometheus.Counter
}

// NewSettlementMetrics registers settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_operations_total",
		Help: "Settlement operations by type and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	entries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_entries_written_total",
		Help: "Ledger entries written across all settlement operations.",
	})
	reg.MustRegister(operations, duration, entries)
	return &SettlementMetrics{
		operations: operations,
		duration:   duration,
		entries:    entries,
	}
}

// ObserveOperation records one settlement attempt.
func (m *SettlementMetrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(d.Seconds())
}

// AddLedgerEntries counts entries written by a committed settlement.
func (m *SettlementMetrics) AddLedgerEntries(n int) {
	if m == nil || m.entries == nil {
		return
	}
	m.entries.Add(float64(n))
}
