// Package insight memoizes insight generation in the cache, keyed by a
// rounded projection of each operation's input.
package insight

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kiranshivaraju/equiplens/internal/cache"
	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/internal/metrics"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Service wraps an InsightGenerator with a read-through cache. Only results
// produced by the AI provider are stored; fallback output is returned but
// never cached. Concurrent misses for the same key share one generation.
type Service struct {
	generator models.InsightGenerator
	cache     cache.Cache
	ttl       map[string]time.Duration
	group     singleflight.Group
	logger    *slog.Logger
}

// NewService builds a Service with the namespace TTLs from cfg.
func NewService(generator models.InsightGenerator, c cache.Cache, cfg config.CacheConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		generator: generator,
		cache:     c,
		ttl: map[string]time.Duration{
			NamespaceSuggestions:        cfg.SuggestionsTTL,
			NamespaceExecutiveSummary:   cfg.ExecutiveSummaryTTL,
			NamespaceOutlierExplanation: cfg.OutlierExplanationTTL,
			NamespaceOptimizations:      cfg.OptimizationsTTL,
		},
		logger: logger,
	}
}

// DefaultCacheConfig returns the standard TTL table.
func DefaultCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		SuggestionsTTL:        24 * time.Hour,
		ExecutiveSummaryTTL:   12 * time.Hour,
		OutlierExplanationTTL: time.Hour,
		OptimizationsTTL:      2 * time.Hour,
	}
}

// TTL returns the expiry used for a namespace.
func (s *Service) TTL(namespace string) time.Duration {
	return s.ttl[namespace]
}

func (s *Service) Name() string { return s.generator.Name() }

func (s *Service) SuggestAnalyses(ctx context.Context, profile models.ColumnProfile) models.SuggestionSet {
	return lookup(ctx, s, NamespaceSuggestions, SuggestionsProjection(profile),
		func(v models.SuggestionSet) string { return v.Source },
		func() models.SuggestionSet { return s.generator.SuggestAnalyses(ctx, profile) })
}

func (s *Service) ExecutiveSummary(ctx context.Context, in models.NarrativeInput) models.ExecutiveSummary {
	return lookup(ctx, s, NamespaceExecutiveSummary, SummaryProjection(in),
		func(v models.ExecutiveSummary) string { return v.Source },
		func() models.ExecutiveSummary { return s.generator.ExecutiveSummary(ctx, in) })
}

func (s *Service) ExplainOutlier(ctx context.Context, q models.OutlierQuery) models.Explanation {
	return lookup(ctx, s, NamespaceOutlierExplanation, ExplanationProjection(q),
		func(v models.Explanation) string { return v.Source },
		func() models.Explanation { return s.generator.ExplainOutlier(ctx, q) })
}

func (s *Service) Optimizations(ctx context.Context, summary models.StatisticalSummary) models.OptimizationSet {
	return lookup(ctx, s, NamespaceOptimizations, OptimizationsProjection(summary),
		func(v models.OptimizationSet) string { return v.Source },
		func() models.OptimizationSet { return s.generator.Optimizations(ctx, summary) })
}

// Warm runs every cacheable operation whose input the dataset already has.
func (s *Service) Warm(ctx context.Context, d *models.Dataset) {
	if d.ColumnProfile != nil {
		s.SuggestAnalyses(ctx, *d.ColumnProfile)
	}
	if d.Summary != nil {
		in := models.NarrativeInput{Summary: *d.Summary}
		if d.Outliers != nil {
			in.Outliers = *d.Outliers
		}
		if d.Correlation != nil {
			in.Correlation = *d.Correlation
		}
		s.ExecutiveSummary(ctx, in)
		s.Optimizations(ctx, *d.Summary)
	}
}

// InvalidateDataset deletes the reconstructable entries for a dataset.
func (s *Service) InvalidateDataset(ctx context.Context, d *models.Dataset) error {
	keys := DatasetKeys(d)
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Delete(ctx, keys...)
}

func lookup[T any](ctx context.Context, s *Service, namespace string, projection any, source func(T) string, generate func() T) T {
	key, err := Key(namespace, projection)
	if err != nil {
		s.logger.Warn("insight cache key failed", "namespace", namespace, "error", err)
		return generate()
	}

	if v, ok := s.get(ctx, namespace, key); ok {
		var cached T
		if err := json.Unmarshal(v, &cached); err == nil {
			metrics.InsightCacheLookups.WithLabelValues(namespace, "hit").Inc()
			return cached
		}
		s.logger.Warn("discarding undecodable cache entry", "namespace", namespace, "key", key)
	}
	metrics.InsightCacheLookups.WithLabelValues(namespace, "miss").Inc()

	v, _, _ := s.group.Do(key, func() (any, error) {
		result := generate()
		if source(result) == models.SourceAI {
			s.put(ctx, namespace, key, result)
		}
		return result, nil
	})
	return v.(T)
}

// get treats a cache read error as a miss.
func (s *Service) get(ctx context.Context, namespace, key string) ([]byte, bool) {
	v, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("insight cache read failed", "namespace", namespace, "error", err)
		return nil, false
	}
	return v, found
}

func (s *Service) put(ctx context.Context, namespace, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("insight cache encode failed", "namespace", namespace, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl[namespace]); err != nil {
		s.logger.Warn("insight cache write failed", "namespace", namespace, "error", err)
	}
}

var _ models.InsightGenerator = (*Service)(nil)
