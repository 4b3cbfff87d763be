package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for the analysis engine. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Attempts *prometheus.CounterVec   // backend calls by backend, outcome and reason
	Analyses *prometheus.CounterVec   // finished analyses by source
	Duration *prometheus.HistogramVec // end-to-end analysis latency by source
}

func New(reg prometheus.Registerer) *Metrics {
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issuelens_backend_attempts_total",
		Help: "Generation backend calls by outcome",
	}, []string{"backend", "outcome", "reason"})

	analyses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "issuelens_analyses_total",
		Help: "Completed ticket analyses by result source",
	}, []string{"source"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "issuelens_analysis_duration_seconds",
		Help:    "End-to-end ticket analysis latency",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 90},
	}, []string{"source"})

	reg.MustRegister(attempts, analyses, duration)

	return &Metrics{
		Attempts: attempts,
		Analyses: analyses,
		Duration: duration,
	}
}

func (m *Metrics) ObserveAttempt(backend, outcome, reason string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(backend, outcome, reason).Inc()
}

func (m *Metrics) ObserveAnalysis(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(source).Inc()
	m.Duration.WithLabelValues(source).Observe(d.Seconds())
}
