package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics covers the JSON file store: persistence health and load salvage.
type StoreMetrics struct {
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	DroppedEntries  prometheus.Counter
	Records         prometheus.Gauge
}

func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Total number of failed writes of the reaction data file.",
		}),
		PersistDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_duration_seconds",
			Help:      "Duration of full rewrites of the reaction data file.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		DroppedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "dropped_entries_total",
			Help:      "Total number of malformed entries dropped while loading the data file.",
		}),
		Records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "records",
			Help:      "Number of reaction records held in memory.",
		}),
	}

	reg.MustRegister(m.PersistFailures, m.PersistDuration, m.DroppedEntries, m.Records)
	return m
}

func (m *StoreMetrics) ObservePersist(start time.Time, err error) {
	if m == nil {
		return
	}
	m.PersistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.PersistFailures.Inc()
	}
}

func (m *StoreMetrics) Dropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedEntries.Add(float64(n))
}

func (m *StoreMetrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.Records.Set(float64(n))
}
