// Package metrics provides Prometheus metrics for the care tracking
// services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	DoseEventsGenerated   prometheus.Counter
	RemindersDispatched   prometheus.Counter
	VitalAlertsEmitted    prometheus.Counter
	ReadingsRecorded      prometheus.Counter
	ScanDuration          prometheus.Histogram
	RegenDuration         prometheus.Histogram
	KafkaMessagesProduced prometheus.Counter
	OutboxPending         prometheus.Gauge
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates and registers all metrics
func New() *Metrics {
	m := &Metrics{
		DoseEventsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dose_events_generated_total",
			Help: "Total pending dose events generated from schedules",
		}),
		RemindersDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_dispatched_total",
			Help: "Total medication reminders dispatched",
		}),
		VitalAlertsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vital_alerts_emitted_total",
			Help: "Total threshold alerts emitted for vital readings",
		}),
		ReadingsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vital_readings_recorded_total",
			Help: "Total vital readings recorded",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reminder_scan_duration_seconds",
			Help:    "Due-dose scan duration",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		RegenDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dose_regen_duration_seconds",
			Help:    "Daily dose regeneration duration",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120},
		}),
		KafkaMessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kafka_messages_produced_total",
			Help: "Total Kafka messages produced",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_entries",
			Help: "Pending outbox entries",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	prometheus.MustRegister(
		m.DoseEventsGenerated,
		m.RemindersDispatched,
		m.VitalAlertsEmitted,
		m.ReadingsRecorded,
		m.ScanDuration,
		m.RegenDuration,
		m.KafkaMessagesProduced,
		m.OutboxPending,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
