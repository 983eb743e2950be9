// Package models contains shared data models used across the EquipLens codebase.
package models

import (
	"context"
	"encoding/json"
	"fmt"
)

// AIProvider is the transport to an external generative model. Never call a
// specific vendor client directly; always inject this interface.
type AIProvider interface {
	// Complete sends one prompt and returns the raw model text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string
}

// CompletionRequest is a single-turn prompt for an AIProvider.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// InsightGenerator produces natural-language insights over pipeline results.
// Every operation returns a usable result; failures degrade to rule-based
// output marked with SourceFallback.
type InsightGenerator interface {
	SuggestAnalyses(ctx context.Context, profile ColumnProfile) SuggestionSet
	ExecutiveSummary(ctx context.Context, in NarrativeInput) ExecutiveSummary
	ExplainOutlier(ctx context.Context, q OutlierQuery) Explanation
	Optimizations(ctx context.Context, summary StatisticalSummary) OptimizationSet
	Name() string
}

const (
	SourceAI       = "ai"
	SourceFallback = "fallback"
)

const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// NarrativeInput is everything phase 3 hands to the executive summary.
type NarrativeInput struct {
	Summary     StatisticalSummary
	Outliers    OutlierReport
	Correlation CorrelationReport
}

// OutlierQuery identifies one anomaly a user asked about.
type OutlierQuery struct {
	EquipmentName string     `json:"equipment_name"`
	EquipmentType string     `json:"equipment_type"`
	Parameter     string     `json:"parameter"`
	Value         float64    `json:"value"`
	ExpectedRange [2]float64 `json:"expected_range"`
}

// Suggestion is one recommended chart or analysis.
type Suggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ChartType   string `json:"chart_type"`
	XAxis       string `json:"x_axis,omitempty"`
	YAxis       string `json:"y_axis,omitempty"`
	Priority    string `json:"priority"`
	Reasoning   string `json:"reasoning,omitempty"`
}

type SuggestionSet struct {
	Suggestions []Suggestion `json:"suggestions"`
	Source      string       `json:"source"`
}

// KeyMetric is one headline number from the executive summary. Models
// sometimes return the value as a number, so it is decoded leniently.
type KeyMetric struct {
	Metric string `json:"metric"`
	Value  string `json:"value"`
	Status string `json:"status"`
}

func (m *KeyMetric) UnmarshalJSON(data []byte) error {
	var raw struct {
		Metric string `json:"metric"`
		Value  any    `json:"value"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Metric = raw.Metric
	m.Status = raw.Status
	switch v := raw.Value.(type) {
	case nil:
		m.Value = ""
	case string:
		m.Value = v
	default:
		m.Value = fmt.Sprint(v)
	}
	return nil
}

type ExecutiveSummary struct {
	Summary           string      `json:"executive_summary"`
	RiskLevel         string      `json:"risk_level"`
	KeyMetrics        []KeyMetric `json:"key_metrics"`
	Recommendations   []string    `json:"recommendations"`
	AnomaliesCount    int         `json:"anomalies_count"`
	CorrelationsCount int         `json:"correlations_count"`
	Source            string      `json:"source"`
}

// Explanation is a plain-text numbered list of likely causes for an outlier.
type Explanation struct {
	Text   string `json:"explanation"`
	Source string `json:"source"`
}

type Optimization struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ExpectedBenefit string `json:"expected_benefit"`
	Difficulty      string `json:"difficulty"`
	Priority        string `json:"priority"`
}

type OptimizationSet struct {
	Optimizations []Optimization `json:"optimizations"`
	Source        string         `json:"source"`
}
