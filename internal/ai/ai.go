package ai

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/issuelens/backend/internal/config"
	"github.com/issuelens/backend/internal/metrics"
	"github.com/issuelens/backend/internal/models"
)

// Analyzer turns a ticket into an analysis. Implementations are total: every input, including
// a nil ticket, produces a complete AnalysisResult.
type Analyzer interface {
	Analyze(ctx context.Context, t *models.Ticket) (models.AnalysisResult, models.Provenance)
}

// NewAnalyzer builds the analyzer described by cfg. With generation disabled or no backend
// configured it returns the rules-only analyzer.
func NewAnalyzer(cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) Analyzer {
	if cfg.AIDisabled {
		logger.Info().Msg("generation disabled, using rule-based analyzer")
		return RulesAnalyzer{Metrics: m}
	}

	var backends []Backend
	for _, url := range cfg.Endpoints() {
		backends = append(backends, NewInferenceBackend(url, cfg.AIToken, cfg.AITimeout))
	}
	if cfg.OpenAIEnabled() {
		backends = append(backends, NewOpenAIBackend(cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIAPIKey, cfg.AITimeout))
	}
	if len(backends) == 0 {
		logger.Info().Msg("no generation backends configured, using rule-based analyzer")
		return RulesAnalyzer{Metrics: m}
	}

	// Temperature 0 selects greedy decoding; config.Load supplies the defaults.
	params := GenerationParams{
		MaxNewTokens: cfg.AIMaxNewTokens,
		Temperature:  cfg.AITemperature,
		TopP:         cfg.AITopP,
	}
	if params.MaxNewTokens <= 0 {
		params.MaxNewTokens = DefaultGenerationParams().MaxNewTokens
	}

	o := NewOrchestrator(backends, logger, WithParams(params), WithTimeout(cfg.AITimeout), WithMetrics(m))
	logger.Info().Strs("backends", o.Backends()).Msg("generation backends configured")
	return o
}
