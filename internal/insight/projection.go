package insight

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/kiranshivaraju/equiplens/internal/cache"
	"github.com/kiranshivaraju/equiplens/pkg/models"
)

// Cache namespaces, one per generator operation.
const (
	NamespaceSuggestions        = "ai_suggestions"
	NamespaceExecutiveSummary   = "executive_summary"
	NamespaceOutlierExplanation = "outlier_explanation"
	NamespaceOptimizations      = "optimizations"
)

// Key derives the cache key for a projection. encoding/json sorts map keys,
// so equal projections always encode to the same bytes.
func Key(namespace string, projection any) (string, error) {
	data, err := json.Marshal(projection)
	if err != nil {
		return "", fmt.Errorf("encoding %s projection: %w", namespace, err)
	}
	sum := sha256.Sum256(data)
	return cache.InsightKey(namespace, hex.EncodeToString(sum[:])), nil
}

type columnShape struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type suggestionsProjection struct {
	Columns []columnShape `json:"columns"`
}

// SuggestionsProjection keeps only the column name/type pairs.
func SuggestionsProjection(profile models.ColumnProfile) any {
	cols := make([]columnShape, 0, len(profile.Columns))
	for _, c := range profile.Columns {
		cols = append(cols, columnShape{Name: c.Name, Type: c.Type})
	}
	return suggestionsProjection{Columns: cols}
}

type summaryStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

type summaryProjection struct {
	TotalRecords  int                     `json:"total_records"`
	OutliersCount int                     `json:"outliers_count"`
	StrongCorrs   int                     `json:"strong_corrs"`
	Stats         map[string]summaryStats `json:"stats"`
}

// SummaryProjection keeps record and outlier counts plus per-column
// aggregates rounded to one decimal.
func SummaryProjection(in models.NarrativeInput) any {
	stats := make(map[string]summaryStats, len(in.Summary.NumericColumns))
	for name, st := range in.Summary.NumericColumns {
		stats[name] = summaryStats{
			Mean: round1(st.Mean),
			Std:  round1(st.Std),
			Min:  round1(st.Min),
			Max:  round1(st.Max),
		}
	}
	return summaryProjection{
		TotalRecords:  in.Summary.TotalRecords,
		OutliersCount: in.Outliers.TotalOutliers,
		StrongCorrs:   len(in.Correlation.StrongCorrelations),
		Stats:         stats,
	}
}

type explanationProjection struct {
	Type  string     `json:"type"`
	Param string     `json:"param"`
	Value float64    `json:"value"`
	Range [2]float64 `json:"range"`
}

// ExplanationProjection keeps the equipment type, parameter and the rounded
// value and range. The equipment name is not part of the key.
func ExplanationProjection(q models.OutlierQuery) any {
	return explanationProjection{
		Type:  q.EquipmentType,
		Param: q.Parameter,
		Value: round1(q.Value),
		Range: [2]float64{round1(q.ExpectedRange[0]), round1(q.ExpectedRange[1])},
	}
}

type optimizationStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

type optimizationsProjection struct {
	Stats map[string]optimizationStats `json:"stats"`
}

// OptimizationsProjection keeps per-column mean and std rounded to one
// decimal.
func OptimizationsProjection(summary models.StatisticalSummary) any {
	stats := make(map[string]optimizationStats, len(summary.NumericColumns))
	for name, st := range summary.NumericColumns {
		stats[name] = optimizationStats{Mean: round1(st.Mean), Std: round1(st.Std)}
	}
	return optimizationsProjection{Stats: stats}
}

// DatasetKeys reconstructs every key a dataset's persisted results could
// have produced. Outlier explanations depend on the caller's query and
// cannot be reconstructed.
func DatasetKeys(d *models.Dataset) []string {
	type entry struct {
		namespace  string
		projection any
	}
	var entries []entry

	if d.ColumnProfile != nil {
		entries = append(entries, entry{NamespaceSuggestions, SuggestionsProjection(*d.ColumnProfile)})
	}
	if d.Summary != nil {
		in := models.NarrativeInput{Summary: *d.Summary}
		if d.Outliers != nil {
			in.Outliers = *d.Outliers
		}
		if d.Correlation != nil {
			in.Correlation = *d.Correlation
		}
		entries = append(entries,
			entry{NamespaceExecutiveSummary, SummaryProjection(in)},
			entry{NamespaceOptimizations, OptimizationsProjection(*d.Summary)},
		)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if k, err := Key(e.namespace, e.projection); err == nil {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := math.Round(v*10) / 10
	if r == 0 {
		return 0
	}
	return r
}
