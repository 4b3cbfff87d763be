package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveAttemptAndAnalysis(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAttempt("mistral", "retry_next", "loading")
	m.ObserveAttempt("mistral", "retry_next", "loading")
	m.ObserveAnalysis("rules", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.Attempts.WithLabelValues("mistral", "retry_next", "loading")); got != 2 {
		t.Fatalf("expected 2 attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.Analyses.WithLabelValues("rules")); got != 1 {
		t.Fatalf("expected 1 analysis, got %v", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAttempt("x", "success", "")
	m.ObserveAnalysis("llm", time.Second)
}
