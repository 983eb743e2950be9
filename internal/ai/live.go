package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

const (
	opSuggestions      = "suggestions"
	opExecutiveSummary = "executive_summary"
	opExplanation      = "outlier_explanation"
	opOptimizations    = "optimizations"
)

// LiveGenerator asks an AI provider for every insight and falls back to
// rule-based output whenever the call or the response parsing fails.
type LiveGenerator struct {
	provider   models.AIProvider
	fallback   *FallbackGenerator
	timeout    time.Duration
	maxRetries uint64
	backoff    func() backoff.BackOff
	logger     *slog.Logger
}

// LiveOption configures a LiveGenerator.
type LiveOption func(*LiveGenerator)

// WithTimeout bounds each provider call, including retries.
func WithTimeout(d time.Duration) LiveOption {
	return func(g *LiveGenerator) { g.timeout = d }
}

// WithMaxRetries sets how many times an unavailable provider is retried.
func WithMaxRetries(n int) LiveOption {
	return func(g *LiveGenerator) {
		if n >= 0 {
			g.maxRetries = uint64(n)
		}
	}
}

// WithBackOff overrides the retry schedule.
func WithBackOff(fn func() backoff.BackOff) LiveOption {
	return func(g *LiveGenerator) { g.backoff = fn }
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *slog.Logger) LiveOption {
	return func(g *LiveGenerator) { g.logger = l }
}

// NewLiveGenerator wraps provider with fallback-on-failure semantics.
func NewLiveGenerator(provider models.AIProvider, opts ...LiveOption) *LiveGenerator {
	g := &LiveGenerator{
		provider:   provider,
		fallback:   NewFallbackGenerator(),
		timeout:    60 * time.Second,
		maxRetries: 2,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *LiveGenerator) Name() string { return g.provider.Name() }

func (g *LiveGenerator) SuggestAnalyses(ctx context.Context, profile models.ColumnProfile) models.SuggestionSet {
	raw, err := g.complete(ctx, opSuggestions, suggestionsPrompt(profile), 2048)
	if err == nil {
		var parsed models.SuggestionSet
		if parsed, err = ParseJSONResponse[models.SuggestionSet](raw); err == nil && parsed.Suggestions == nil {
			err = fmt.Errorf("%w: missing suggestions", ErrInvalidResponse)
		}
		if err == nil {
			g.record(opSuggestions, models.SourceAI)
			parsed.Source = models.SourceAI
			return parsed
		}
	}
	g.warn(opSuggestions, err)
	return g.fallback.SuggestAnalyses(ctx, profile)
}

func (g *LiveGenerator) ExecutiveSummary(ctx context.Context, in models.NarrativeInput) models.ExecutiveSummary {
	raw, err := g.complete(ctx, opExecutiveSummary, executiveSummaryPrompt(in), 2048)
	if err == nil {
		var parsed models.ExecutiveSummary
		if parsed, err = ParseJSONResponse[models.ExecutiveSummary](raw); err == nil && strings.TrimSpace(parsed.Summary) == "" {
			err = fmt.Errorf("%w: missing executive_summary", ErrInvalidResponse)
		}
		if err == nil {
			g.record(opExecutiveSummary, models.SourceAI)
			return normalizeSummary(parsed, in)
		}
	}
	g.warn(opExecutiveSummary, err)
	return g.fallback.ExecutiveSummary(ctx, in)
}

func (g *LiveGenerator) ExplainOutlier(ctx context.Context, q models.OutlierQuery) models.Explanation {
	raw, err := g.complete(ctx, opExplanation, explanationPrompt(q), 512)
	if err == nil {
		text := StripCodeFence(raw)
		if text != "" {
			g.record(opExplanation, models.SourceAI)
			return models.Explanation{Text: text, Source: models.SourceAI}
		}
		err = fmt.Errorf("%w: empty explanation", ErrInvalidResponse)
	}
	g.warn(opExplanation, err)
	return g.fallback.ExplainOutlier(ctx, q)
}

func (g *LiveGenerator) Optimizations(ctx context.Context, summary models.StatisticalSummary) models.OptimizationSet {
	raw, err := g.complete(ctx, opOptimizations, optimizationPrompt(summary), 1024)
	if err == nil {
		var parsed models.OptimizationSet
		if parsed, err = ParseJSONResponse[models.OptimizationSet](raw); err == nil && len(parsed.Optimizations) == 0 {
			err = fmt.Errorf("%w: missing optimizations", ErrInvalidResponse)
		}
		if err == nil {
			g.record(opOptimizations, models.SourceAI)
			parsed.Source = models.SourceAI
			return parsed
		}
	}
	g.warn(opOptimizations, err)
	return g.fallback.Optimizations(ctx, summary)
}

// complete calls the provider under the generator timeout, retrying
// ErrProviderUnavailable with exponential backoff.
func (g *LiveGenerator) complete(ctx context.Context, op, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := models.CompletionRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
	}

	start := time.Now()
	defer func() {
		metrics.AILatency.WithLabelValues(g.provider.Name()).Observe(time.Since(start).Seconds())
	}()

	var out string
	operation := func() error {
		text, err := safeComplete(ctx, g.provider, req)
		if err != nil {
			if errors.Is(err, ErrProviderUnavailable) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		out = text
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(g.backoff(), g.maxRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrInferenceTimeout) {
			return "", fmt.Errorf("%w: %s: %v", ErrInferenceTimeout, op, err)
		}
		return "", err
	}
	return out, nil
}

// safeComplete turns a provider panic into an error.
func safeComplete(ctx context.Context, p models.AIProvider, req models.CompletionRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: provider panic: %v", ErrInvalidResponse, r)
		}
	}()
	return p.Complete(ctx, req)
}

func (g *LiveGenerator) record(op, source string) {
	metrics.AIGenerations.WithLabelValues(g.provider.Name(), op, source).Inc()
}

func (g *LiveGenerator) warn(op string, err error) {
	g.record(op, models.SourceFallback)
	g.logger.Warn("ai generation failed, using fallback",
		"provider", g.provider.Name(),
		"operation", op,
		"error", err,
	)
}

// normalizeSummary pins the counts to the computed results and coerces an
// unknown risk level to medium.
func normalizeSummary(s models.ExecutiveSummary, in models.NarrativeInput) models.ExecutiveSummary {
	switch strings.ToLower(strings.TrimSpace(s.RiskLevel)) {
	case models.RiskLow:
		s.RiskLevel = models.RiskLow
	case models.RiskHigh:
		s.RiskLevel = models.RiskHigh
	default:
		s.RiskLevel = models.RiskMedium
	}
	if s.KeyMetrics == nil {
		s.KeyMetrics = []models.KeyMetric{}
	}
	if s.Recommendations == nil {
		s.Recommendations = []string{}
	}
	s.AnomaliesCount = in.Outliers.TotalOutliers
	s.CorrelationsCount = len(in.Correlation.StrongCorrelations)
	s.Source = models.SourceAI
	return s
}

var _ models.InsightGenerator = (*LiveGenerator)(nil)
