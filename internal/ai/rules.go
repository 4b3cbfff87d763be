package ai

import (
	"context"
	"time"

	"github.com/issuelens/backend/internal/classify"
	"github.com/issuelens/backend/internal/metrics"
	"github.com/issuelens/backend/internal/models"
)

// RulesAnalyzer runs the keyword classifier directly, without any generation backend.
type RulesAnalyzer struct {
	Metrics *metrics.Metrics
}

func (r RulesAnalyzer) Analyze(ctx context.Context, t *models.Ticket) (models.AnalysisResult, models.Provenance) {
	start := time.Now()
	source := models.SourceRules
	if t == nil || t.IsEmpty() {
		source = models.SourceDefault
	}
	res := classify.Classify(t)
	r.Metrics.ObserveAnalysis(source, time.Since(start))
	return res, models.Provenance{
		Source:    source,
		Attempts:  []models.Attempt{},
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
