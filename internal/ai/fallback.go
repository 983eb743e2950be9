package ai

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// UnavailableSummaryText is the narrative used when phase 3 cannot produce
// any summary at all.
const UnavailableSummaryText = "AI insights unavailable. Please review the statistical analysis."

// variabilityThreshold is the coefficient of variation above which a
// parameter is flagged as unstable.
const variabilityThreshold = 0.25

// FallbackGenerator produces deterministic, rule-based insights from the
// input numbers. It is used when no AI provider is configured and whenever
// a live call fails.
type FallbackGenerator struct{}

// NewFallbackGenerator returns a generator that never calls out.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{}
}

func (f *FallbackGenerator) Name() string { return "fallback" }

// SuggestAnalyses proposes a scatter plot of the first two numeric columns
// and a bar chart of the first numeric column by the first category.
func (f *FallbackGenerator) SuggestAnalyses(_ context.Context, profile models.ColumnProfile) models.SuggestionSet {
	numeric := profile.ColumnsOfType(models.ColumnTypeNumeric)
	categorical := profile.ColumnsOfType(models.ColumnTypeCategorical)

	suggestions := []models.Suggestion{}
	if len(numeric) >= 2 {
		suggestions = append(suggestions, models.Suggestion{
			Title:       fmt.Sprintf("%s vs %s Analysis", numeric[0], numeric[1]),
			Description: "Scatter plot analysis",
			ChartType:   "scatter",
			XAxis:       numeric[0],
			YAxis:       numeric[1],
			Priority:    "high",
		})
	}
	if len(numeric) >= 1 && len(categorical) >= 1 {
		suggestions = append(suggestions, models.Suggestion{
			Title:       fmt.Sprintf("%s by %s", numeric[0], categorical[0]),
			Description: "Compare parameter levels across groups",
			ChartType:   "bar",
			XAxis:       categorical[0],
			YAxis:       numeric[0],
			Priority:    "medium",
		})
	}
	return models.SuggestionSet{Suggestions: suggestions, Source: models.SourceFallback}
}

// ExecutiveSummary summarizes record and outlier counts with headline
// averages.
func (f *FallbackGenerator) ExecutiveSummary(_ context.Context, in models.NarrativeInput) models.ExecutiveSummary {
	return models.ExecutiveSummary{
		Summary: fmt.Sprintf("Analysis of %d records complete. %d outliers detected.",
			in.Summary.TotalRecords, in.Outliers.TotalOutliers),
		RiskLevel:         models.RiskMedium,
		KeyMetrics:        keyMetrics(in.Summary, 3),
		Recommendations:   []string{"Review data for quality", "Investigate outliers"},
		AnomaliesCount:    in.Outliers.TotalOutliers,
		CorrelationsCount: len(in.Correlation.StrongCorrelations),
		Source:            models.SourceFallback,
	}
}

// ExplainOutlier lists generic causes for an out-of-range reading.
func (f *FallbackGenerator) ExplainOutlier(_ context.Context, q models.OutlierQuery) models.Explanation {
	equipment := q.EquipmentType
	if equipment == "" {
		equipment = "the"
	}
	text := fmt.Sprintf(`The %s value of %g is outside the expected range [%g, %g] for %s equipment. Common causes:

1. Sensor malfunction or calibration drift reporting an incorrect %s reading.
2. Process upset such as a blockage, leak or sudden load change.
3. Equipment degradation such as fouling, wear or failing seals.`,
		q.Parameter, q.Value, q.ExpectedRange[0], q.ExpectedRange[1], equipment, q.Parameter)
	return models.Explanation{Text: text, Source: models.SourceFallback}
}

// Optimizations always recommends a sensor review and flags the most
// variable parameter when its coefficient of variation is high.
func (f *FallbackGenerator) Optimizations(_ context.Context, summary models.StatisticalSummary) models.OptimizationSet {
	opts := []models.Optimization{{
		Title:           "Data Quality Review",
		Description:     "Review equipment sensors for calibration",
		ExpectedBenefit: "Improved data reliability",
		Difficulty:      "easy",
		Priority:        "medium",
	}}

	if name, cv := mostVariable(summary); cv > variabilityThreshold {
		opts = append(opts, models.Optimization{
			Title: fmt.Sprintf("Stabilize %s", name),
			Description: fmt.Sprintf("%s varies by %.0f%% around its mean. Tighter control loops or setpoint review can reduce swings.",
				name, cv*100),
			ExpectedBenefit: "More consistent operation and lower energy use",
			Difficulty:      "medium",
			Priority:        "high",
		})
	}
	return models.OptimizationSet{Optimizations: opts, Source: models.SourceFallback}
}

// UnavailableSummary is the narrative stored when generation itself broke.
func UnavailableSummary(in models.NarrativeInput) models.ExecutiveSummary {
	return models.ExecutiveSummary{
		Summary:           UnavailableSummaryText,
		RiskLevel:         models.RiskMedium,
		KeyMetrics:        []models.KeyMetric{},
		Recommendations:   []string{},
		AnomaliesCount:    in.Outliers.TotalOutliers,
		CorrelationsCount: len(in.Correlation.StrongCorrelations),
		Source:            models.SourceFallback,
	}
}

func keyMetrics(summary models.StatisticalSummary, limit int) []models.KeyMetric {
	names := sortedKeys(summary.NumericColumns)
	metrics := []models.KeyMetric{}
	for _, name := range names {
		if len(metrics) == limit {
			break
		}
		st := summary.NumericColumns[name]
		metrics = append(metrics, models.KeyMetric{
			Metric: "Average " + name,
			Value:  fmt.Sprintf("%.2f", st.Mean),
			Status: "normal",
		})
	}
	return metrics
}

func mostVariable(summary models.StatisticalSummary) (string, float64) {
	best, bestCV := "", 0.0
	for _, name := range sortedKeys(summary.NumericColumns) {
		st := summary.NumericColumns[name]
		if st.Mean == 0 {
			continue
		}
		cv := st.Std / math.Abs(st.Mean)
		if cv > bestCV {
			best, bestCV = name, cv
		}
	}
	return best, bestCV
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ models.InsightGenerator = (*FallbackGenerator)(nil)
