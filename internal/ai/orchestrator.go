package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/issuelens/backend/internal/classify"
	"github.com/issuelens/backend/internal/metrics"
	"github.com/issuelens/backend/internal/models"
)

var ErrInvalidResult = errors.New("analysis result failed schema validation")

// Orchestrator tries each backend once, in order, and falls back to the keyword classifier
// when none of them yields a valid analysis.
type Orchestrator struct {
	backends []Backend
	params   GenerationParams
	timeout  time.Duration
	validate *validator.Validate
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

type Option func(*Orchestrator)

func WithParams(p GenerationParams) Option {
	return func(o *Orchestrator) { o.params = p }
}

// WithTimeout bounds every single backend attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(backends []Backend, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backends: append([]Backend(nil), backends...),
		params:   DefaultGenerationParams(),
		timeout:  30 * time.Second,
		validate: validator.New(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Backends() []string {
	names := make([]string, 0, len(o.backends))
	for _, b := range o.backends {
		names = append(names, b.Name())
	}
	return names
}

func (o *Orchestrator) Analyze(ctx context.Context, t *models.Ticket) (models.AnalysisResult, models.Provenance) {
	start := time.Now()
	prov := models.Provenance{Attempts: []models.Attempt{}}
	finish := func(res models.AnalysisResult, source string) (models.AnalysisResult, models.Provenance) {
		prov.Source = source
		prov.LatencyMs = time.Since(start).Milliseconds()
		o.metrics.ObserveAnalysis(source, time.Since(start))
		return res, prov
	}

	if t == nil || t.IsEmpty() {
		o.logger.Warn().Msg("invalid ticket data, using default analysis")
		return finish(classify.Default(), models.SourceDefault)
	}
	if len(o.backends) == 0 {
		return finish(classify.Classify(t), models.SourceRules)
	}

	prompt := ComposePrompt(BuildContext(*t))
	for _, b := range o.backends {
		attemptStart := time.Now()
		out, res := o.attempt(ctx, b, prompt)
		latency := time.Since(attemptStart)

		attempt := models.Attempt{
			Backend:   b.Name(),
			Outcome:   out.Kind.String(),
			Reason:    string(out.Reason),
			Detail:    out.Detail,
			LatencyMs: latency.Milliseconds(),
		}
		prov.Attempts = append(prov.Attempts, attempt)
		o.metrics.ObserveAttempt(b.Name(), out.Kind.String(), string(out.Reason))

		if out.Kind == OutcomeSuccess {
			o.logger.Info().
				Str("backend", b.Name()).
				Int("ticket", t.Number).
				Dur("latency", latency).
				Msg("analysis generated")
			prov.Backend = b.Name()
			return finish(res, models.SourceLLM)
		}

		o.logger.Warn().
			Str("backend", b.Name()).
			Str("reason", string(out.Reason)).
			Int("status", out.StatusCode).
			Str("detail", out.Detail).
			Dur("latency", latency).
			Msg("backend failed, trying next")
	}

	o.logger.Warn().
		Int("ticket", t.Number).
		Int("attempts", len(prov.Attempts)).
		Str("outcome", OutcomeExhausted.String()).
		Msg("all backends failed, using rule-based fallback")
	return finish(classify.Classify(t), models.SourceRules)
}

// attempt runs a single backend call and validates a successful payload. A payload that does
// not validate is reported as RetryNext.
func (o *Orchestrator) attempt(ctx context.Context, b Backend, prompt string) (out Outcome, res models.AnalysisResult) {
	actx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			out = RetryNext(ReasonTransport, 0, fmt.Sprintf("backend panic: %v", r))
		}
	}()

	out = b.Generate(actx, prompt, o.params)
	if out.Kind != OutcomeSuccess {
		return out, res
	}

	res, err := o.accept(out.Text)
	if err != nil {
		reason := ReasonMalformed
		if errors.Is(err, ErrInvalidResult) {
			reason = ReasonInvalid
		}
		return RetryNext(reason, out.StatusCode, err.Error()), models.AnalysisResult{}
	}
	return out, res
}

func (o *Orchestrator) accept(text string) (models.AnalysisResult, error) {
	res, err := ParseResponse(text)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if err := o.validate.Struct(res); err != nil {
		return models.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
	}
	return res, nil
}
