package verstats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors a Store reports to.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RecordsTotal       *prometheus.CounterVec
	ResetsTotal        *prometheus.CounterVec
	BackendErrorsTotal *prometheus.CounterVec
	UpgradesTotal      *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verstats_records_total",
				Help: "Total number of statistic recordings",
			},
			[]string{"statistic"},
		),
		ResetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verstats_resets_total",
				Help: "Total number of statistic resets",
			},
			[]string{"scope"},
		),
		BackendErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verstats_backend_errors_total",
				Help: "Total number of masked backend failures",
			},
			[]string{"operation"},
		),
		UpgradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verstats_upgrades_total",
				Help: "Total number of upgrade hook invocations",
			},
			[]string{"kind"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verstats_operation_duration_seconds",
				Help:    "Store operation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"operation"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.RecordsTotal,
			m.ResetsTotal,
			m.BackendErrorsTotal,
			m.UpgradesTotal,
			m.OperationDuration,
		)
	}
	return m
}

func (m *Metrics) record(statistic string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(statistic).Inc()
}

func (m *Metrics) reset(scope string) {
	if m == nil {
		return
	}
	m.ResetsTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) backendError(operation string) {
	if m == nil {
		return
	}
	m.BackendErrorsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) upgrade(kind string) {
	if m == nil {
		return
	}
	m.UpgradesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) observe(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
