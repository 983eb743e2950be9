package analysis

import (
	"math"
	"strconv"

	"github.com/kiranshivaraju/equiplens/pkg/models"
	"github.com/kiranshivaraju/equiplens/pkg/tabular"
)

const (
	numericSamples     = 3
	categoricalSamples = 5
	// categoricalRatio is the share of rows below which a column's distinct
	// value count makes it categorical rather than free text.
	categoricalRatio = 0.5
)

// ProfileColumns classifies every column as numeric, temporal, categorical
// or text and records missing and unique counts with a few sample values.
func ProfileColumns(t *tabular.Table) models.ColumnProfile {
	profile := models.ColumnProfile{
		TotalColumns: len(t.Header),
		TotalRows:    t.Len(),
		Columns:      make([]models.ColumnInfo, 0, len(t.Header)),
	}
	for _, name := range t.Header {
		cells, _ := t.Column(name)
		profile.Columns = append(profile.Columns, profileColumn(name, cells, t.Len()))
	}
	return profile
}

func profileColumn(name string, cells []string, rows int) models.ColumnInfo {
	info := models.ColumnInfo{Name: name, SampleValues: []string{}}

	kind := tabular.InferKind(cells)
	present := make([]string, 0, len(cells))
	for _, c := range cells {
		if tabular.IsMissing(c) {
			info.MissingCount++
			continue
		}
		present = append(present, c)
	}
	if rows > 0 {
		info.MissingPercent = round(float64(info.MissingCount)/float64(rows)*100, 2)
	}
	info.UniqueCount = uniqueCount(present, kind == tabular.KindNumeric)

	switch {
	case kind == tabular.KindNumeric:
		info.Type = models.ColumnTypeNumeric
		info.SampleValues = head(present, numericSamples)
	case kind == tabular.KindTemporal:
		info.Type = models.ColumnTypeTemporal
		info.SampleValues = head(present, numericSamples)
	case float64(info.UniqueCount) < float64(rows)*categoricalRatio:
		info.Type = models.ColumnTypeCategorical
		info.SampleValues = head(distinct(present), categoricalSamples)
	default:
		info.Type = models.ColumnTypeText
		info.SampleValues = head(present, numericSamples)
	}
	return info
}

// uniqueCount counts distinct values; numeric cells compare by value so
// "1" and "1.0" are the same.
func uniqueCount(present []string, numeric bool) int {
	seen := make(map[string]struct{}, len(present))
	for _, c := range present {
		key := c
		if numeric {
			if v, ok := tabular.ParseFloat(c); ok {
				key = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func head(values []string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < len(values) && i < n; i++ {
		out = append(out, values[i])
	}
	return out
}

// SummarizeColumns computes numeric statistics and categorical
// distributions for the columns the profile classified.
func SummarizeColumns(t *tabular.Table, profile models.ColumnProfile) models.StatisticalSummary {
	numeric := profile.ColumnsOfType(models.ColumnTypeNumeric)
	categorical := profile.ColumnsOfType(models.ColumnTypeCategorical)

	summary := models.StatisticalSummary{
		TotalRecords:            t.Len(),
		TotalColumns:            len(t.Header),
		NumericColumnsCount:     len(numeric),
		CategoricalColumnsCount: len(categorical),
		NumericColumns:          make(map[string]models.NumericStats, len(numeric)),
		CategoricalColumns:      make(map[string]models.CategoricalStats, len(categorical)),
	}

	for _, name := range numeric {
		values, ok := t.Floats(name)
		if !ok {
			continue
		}
		st, err := Describe(values)
		if err != nil {
			summary.NoDataColumns = append(summary.NoDataColumns, name)
			continue
		}
		summary.NumericColumns[name] = st
	}

	for _, name := range categorical {
		cells, ok := t.Column(name)
		if !ok {
			continue
		}
		dist := make(map[string]int)
		for _, c := range cells {
			if !tabular.IsMissing(c) {
				dist[c]++
			}
		}
		summary.CategoricalColumns[name] = models.CategoricalStats{
			Distribution: dist,
			UniqueCount:  len(dist),
		}
	}
	return summary
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
