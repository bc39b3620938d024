package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	recordsFetched *prometheus.CounterVec
	recordsStored  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	phaseChanges   *prometheus.CounterVec
	wsMessages     *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		recordsFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predpull_records_fetched_total",
				Help: "Total records fetched from upstream venues",
			},
			[]string{"protocol", "category"},
		),
		recordsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predpull_records_stored_total",
				Help: "Total records durably stored",
			},
			[]string{"protocol", "category"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		phaseChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predpull_phase_transitions_total",
				Help: "Pipeline phase transitions",
			},
			[]string{"protocol", "phase"},
		),
		wsMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "predpull_ws_messages_total",
				Help: "WebSocket messages received by event type",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "predpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetched records records fetched from an upstream venue.
func (r *Recorder) RecordFetched(protocol, category string, n int) {
	r.recordsFetched.WithLabelValues(protocol, category).Add(float64(n))
}

// RecordStored records records durably stored.
func (r *Recorder) RecordStored(protocol, category string, n int) {
	r.recordsStored.WithLabelValues(protocol, category).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordPhase records a pipeline phase transition.
func (r *Recorder) RecordPhase(protocol, phase string) {
	r.phaseChanges.WithLabelValues(protocol, phase).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordWSMessage records one inbound WebSocket message.
func (r *Recorder) RecordWSMessage(kind string) {
	r.wsMessages.WithLabelValues(kind).Inc()
}
