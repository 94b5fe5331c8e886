package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	executions *prometheus.CounterVec
	units      *prometheus.CounterVec
	signals    *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanrunner_executions_total",
				Help: "Total number of executions by aggregation method and result",
			},
			[]string{"method", "success"},
		),
		units: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanrunner_units_total",
				Help: "Per-scanner execution unit outcomes",
			},
			[]string{"scanner", "outcome"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scanrunner_signals_total",
				Help: "Signals produced per scanner before aggregation",
			},
			[]string{"scanner"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scanrunner_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordExecution records one finished execution.
func (r *Recorder) RecordExecution(method string, success bool) {
	r.executions.WithLabelValues(method, strconv.FormatBool(success)).Inc()
}

// RecordUnitOutcome records a single execution unit's outcome for a scanner.
func (r *Recorder) RecordUnitOutcome(scannerID, outcome string) {
	r.units.WithLabelValues(scannerID, outcome).Inc()
}

// RecordSignals records how many signals a scanner contributed.
func (r *Recorder) RecordSignals(scannerID string, count int) {
	r.signals.WithLabelValues(scannerID).Add(float64(count))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
